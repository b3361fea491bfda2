package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =====================================================
// CUSTOM ERROR CODES
// =====================================================
const (
	ErrCodeValidation   = "GEN001"
	ErrCodeIntegrity    = "GEN002"
	ErrCodeCycle        = "GEN003"
	ErrCodeTransaction  = "GEN004"
	ErrCodeNotFound     = "GEN005"
	ErrCodeInvalidInput = "GEN006"
)

// =====================================================
// SENTINEL ERRORS
// =====================================================
var (
	ErrGroupNotFound     = errors.New("family group not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrLinkNotFound      = errors.New("parent link not found")
	ErrDuplicatePrefix   = errors.New("code prefix already in use")
	ErrInvalidCodePrefix = errors.New("code prefix must match ^[A-Z][A-Z0-9]{0,9}$")
	ErrCodeConflict      = errors.New("member code already taken")
	ErrCrossGroup        = errors.New("members belong to different family groups")
	ErrVersionConflict   = errors.New("record was modified by another request")
)

// =====================================================
// VALIDATION ERROR (Consistency Guard)
// =====================================================

type ValidationReason string

const (
	ReasonUnknownMember       ValidationReason = "unknown_member"
	ReasonSelfLink            ValidationReason = "self_link"
	ReasonCrossGroup          ValidationReason = "cross_group"
	ReasonDuplicateRole       ValidationReason = "duplicate_role"
	ReasonSameParentBothRoles ValidationReason = "same_parent_both_roles"
	ReasonSexMismatch         ValidationReason = "sex_mismatch"
	ReasonCycle               ValidationReason = "cycle"
	ReasonInvalidRole         ValidationReason = "invalid_role"
)

// ValidationError: cạnh đề xuất vi phạm invariant, bị từ chối trước khi ghi.
type ValidationError struct {
	Reason   ValidationReason
	ParentID int64
	ChildID  int64
	Role     Role
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parent link %d -> %d (%s): %s: %s",
		e.ParentID, e.ChildID, e.Role, e.Reason, e.Message)
}

// Is cho phép errors.Is(err, ErrCrossGroup) với reason cross_group
func (e *ValidationError) Is(target error) bool {
	return target == ErrCrossGroup && e.Reason == ReasonCrossGroup
}

func NewValidationError(reason ValidationReason, p LinkProposal, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Reason:   reason,
		ParentID: p.ParentID,
		ChildID:  p.ChildID,
		Role:     p.Role,
		Message:  fmt.Sprintf(format, args...),
	}
}

// =====================================================
// INTEGRITY / CYCLE ERRORS (persisted data already broken)
// =====================================================

type IntegrityError struct {
	GroupID   int64
	MemberIDs []int64
	Message   string
}

func (e *IntegrityError) Error() string {
	if len(e.MemberIDs) == 0 {
		return fmt.Sprintf("integrity violation in group %d: %s", e.GroupID, e.Message)
	}
	return fmt.Sprintf("integrity violation in group %d: %s (members %s)",
		e.GroupID, e.Message, joinIDs(e.MemberIDs))
}

// CycleError chứa các member id tạo thành chu trình, theo thứ tự đường đi
type CycleError struct {
	MemberIDs []int64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("parent links form a cycle: %s", joinIDs(e.MemberIDs))
}

// =====================================================
// TRANSACTION ERROR
// =====================================================

// TransactionError: store transaction lỗi giữa chừng, đã rollback toàn bộ.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction rolled back: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// =====================================================
// HELPERS
// =====================================================

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

func IsTransactionError(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}

// IsDomainError reports errors that carry their own meaning for the caller;
// anything else raised inside a store transaction is a TransactionError.
func IsDomainError(err error) bool {
	switch {
	case IsValidationError(err), IsIntegrityError(err), IsCycleError(err), IsTransactionError(err):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	for _, sentinel := range []error{
		ErrGroupNotFound, ErrMemberNotFound, ErrLinkNotFound,
		ErrDuplicatePrefix, ErrInvalidCodePrefix, ErrCodeConflict, ErrVersionConflict,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// GetHTTPStatusCode map domain error -> HTTP status
func GetHTTPStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrLinkNotFound):
		return http.StatusNotFound
	case IsValidationError(err),
		errors.Is(err, ErrInvalidCodePrefix):
		return http.StatusBadRequest
	case IsCycleError(err),
		IsIntegrityError(err),
		errors.Is(err, ErrDuplicatePrefix),
		errors.Is(err, ErrCodeConflict),
		errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case IsTransactionError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCode trả về mã lỗi cho response envelope
func GetErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrLinkNotFound):
		return ErrCodeNotFound
	case IsValidationError(err):
		return ErrCodeValidation
	case IsCycleError(err):
		return ErrCodeCycle
	case IsIntegrityError(err):
		return ErrCodeIntegrity
	case IsTransactionError(err):
		return ErrCodeTransaction
	default:
		return ErrCodeInvalidInput
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " -> ")
}
