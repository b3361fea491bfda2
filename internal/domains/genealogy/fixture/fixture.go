// Package fixture loads family groups from YAML into the in-memory store,
// for familyctl --fixture and for tests.
package fixture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/domains/genealogy/repository"
)

// Fixture là nội dung một file YAML
type Fixture struct {
	Groups  []Group  `yaml:"groups"`
	Members []Member `yaml:"members"`
	Links   []Link   `yaml:"links"`
}

type Group struct {
	ID         int64  `yaml:"id"`
	Name       string `yaml:"name"`
	CodePrefix string `yaml:"code_prefix"`
}

type Member struct {
	ID       int64  `yaml:"id"`
	GroupID  int64  `yaml:"group_id"`
	FullName string `yaml:"full_name"`
	Sex      string `yaml:"sex"`
	// Code bỏ trống = chưa được đánh code
	Code      string `yaml:"code,omitempty"`
	BirthDate string `yaml:"birth_date,omitempty"`
}

type Link struct {
	ID       int64  `yaml:"id"`
	GroupID  int64  `yaml:"group_id"`
	ParentID int64  `yaml:"parent_id"`
	ChildID  int64  `yaml:"child_id"`
	Role     string `yaml:"role"`
}

// LoadFile đọc fixture từ đường dẫn
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	f, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// Load decode YAML, field lạ bị từ chối
func Load(r io.Reader) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// validate chỉ kiểm tra dữ liệu tối thiểu để nạp được; cạnh hỏng (cycle,
// hai father...) vẫn được giữ nguyên để engine báo lỗi.
func (f *Fixture) validate() error {
	groups := make(map[int64]bool, len(f.Groups))
	for _, g := range f.Groups {
		if g.ID <= 0 {
			return fmt.Errorf("group %q: id must be positive", g.Name)
		}
		if !model.IsValidCodePrefix(g.CodePrefix) {
			return fmt.Errorf("group %d: %w", g.ID, model.ErrInvalidCodePrefix)
		}
		groups[g.ID] = true
	}
	for _, m := range f.Members {
		if m.ID <= 0 {
			return fmt.Errorf("member %q: id must be positive", m.FullName)
		}
		if !groups[m.GroupID] {
			return fmt.Errorf("member %d: unknown group %d", m.ID, m.GroupID)
		}
		if !model.Sex(m.Sex).IsValid() {
			return fmt.Errorf("member %d: invalid sex %q", m.ID, m.Sex)
		}
		if m.BirthDate != "" {
			if _, err := time.Parse("2006-01-02", m.BirthDate); err != nil {
				return fmt.Errorf("member %d: birth_date: %w", m.ID, err)
			}
		}
	}
	for _, l := range f.Links {
		if !model.Role(l.Role).IsValid() {
			return fmt.Errorf("link %d: invalid role %q", l.ID, l.Role)
		}
	}
	return nil
}

// Entities chuyển fixture sang model
func (f *Fixture) Entities() ([]model.FamilyGroup, []model.Member, []model.ParentLink) {
	groups := make([]model.FamilyGroup, 0, len(f.Groups))
	for _, g := range f.Groups {
		groups = append(groups, model.FamilyGroup{ID: g.ID, Name: g.Name, CodePrefix: g.CodePrefix})
	}

	members := make([]model.Member, 0, len(f.Members))
	for _, m := range f.Members {
		member := model.Member{
			ID:       m.ID,
			GroupID:  m.GroupID,
			FullName: m.FullName,
			Sex:      model.Sex(m.Sex),
		}
		if m.Code != "" {
			code := m.Code
			member.Code = &code
		}
		if m.BirthDate != "" {
			if t, err := time.Parse("2006-01-02", m.BirthDate); err == nil {
				member.BirthDate = &t
			}
		}
		members = append(members, member)
	}

	links := make([]model.ParentLink, 0, len(f.Links))
	for _, l := range f.Links {
		groupID := l.GroupID
		if groupID == 0 {
			groupID = groupOf(members, l.ChildID)
		}
		links = append(links, model.ParentLink{
			ID:       l.ID,
			GroupID:  groupID,
			ParentID: l.ParentID,
			ChildID:  l.ChildID,
			Role:     model.Role(l.Role),
		})
	}
	return groups, members, links
}

func groupOf(members []model.Member, id int64) int64 {
	for _, m := range members {
		if m.ID == id {
			return m.GroupID
		}
	}
	return 0
}

// NewStore tạo MemoryStore đã nạp fixture
func (f *Fixture) NewStore() *repository.MemoryStore {
	store := repository.NewMemoryStore()
	store.Seed(f.Entities())
	return store
}
