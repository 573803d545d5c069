package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// DefaultCreditLimit caps the credits a student may carry in one semester.
const DefaultCreditLimit = 24

// Eligibility denial reasons, also used as metric labels.
const (
	DenialDepartmentUnknown    = "department_unknown"
	DenialDepartmentNotAllowed = "department_not_allowed"
	DenialCreditLimit          = "credit_limit"
)

type departmentReader interface {
	FindByCode(ctx context.Context, code string) (*models.Department, error)
}

type creditLedger interface {
	SumCreditsBySemester(ctx context.Context, studentID, semesterID string) (int, error)
}

// EligibilityValidator runs the department and credit-limit admission checks
// against data read at decision time.
type EligibilityValidator struct {
	departments departmentReader
	ledger      creditLedger
	creditLimit int
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewEligibilityValidator constructs the validator. A non-positive limit falls
// back to DefaultCreditLimit.
func NewEligibilityValidator(departments departmentReader, ledger creditLedger, creditLimit int, metrics *MetricsService, logger *zap.Logger) *EligibilityValidator {
	if creditLimit <= 0 {
		creditLimit = DefaultCreditLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityValidator{departments: departments, ledger: ledger, creditLimit: creditLimit, metrics: metrics, logger: logger}
}

// CreditLimit returns the configured per-semester limit.
func (v *EligibilityValidator) CreditLimit() int {
	return v.creditLimit
}

// Validate admits or denies a new enrollment of student into offering.
func (v *EligibilityValidator) Validate(ctx context.Context, student *models.Student, offering *models.CourseOffering) error {
	if err := v.checkDepartment(ctx, student, offering); err != nil {
		return err
	}
	return v.checkCreditLimit(ctx, student, offering)
}

func (v *EligibilityValidator) checkDepartment(ctx context.Context, student *models.Student, offering *models.CourseOffering) error {
	if len(offering.AllowedDeptIDs) == 0 {
		return nil
	}
	department, err := v.departments.FindByCode(ctx, student.DepartmentCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v.deny(DenialDepartmentUnknown,
				fmt.Sprintf("department %q of the student could not be verified", student.DepartmentCode),
				map[string]interface{}{"department_code": student.DepartmentCode})
		}
		return appErrors.Dependency(err, "failed to resolve student department")
	}
	for _, id := range offering.AllowedDeptIDs {
		if id == department.ID {
			return nil
		}
	}
	return v.deny(DenialDepartmentNotAllowed,
		fmt.Sprintf("offering is restricted to other departments than %s", department.Code),
		map[string]interface{}{
			"department_id":    department.ID,
			"allowed_dept_ids": []int64(offering.AllowedDeptIDs),
		})
}

func (v *EligibilityValidator) checkCreditLimit(ctx context.Context, student *models.Student, offering *models.CourseOffering) error {
	current, err := v.ledger.SumCreditsBySemester(ctx, student.ID, offering.SemesterID)
	if err != nil {
		return appErrors.Dependency(err, "failed to sum semester credits")
	}
	if current+offering.Credits <= v.creditLimit {
		return nil
	}
	return v.deny(DenialCreditLimit,
		fmt.Sprintf("credit limit exceeded: %d current + %d requested > %d", current, offering.Credits, v.creditLimit),
		map[string]interface{}{
			"current_credits":   current,
			"requested_credits": offering.Credits,
			"credit_limit":      v.creditLimit,
		})
}

func (v *EligibilityValidator) deny(reason, message string, details map[string]interface{}) error {
	v.metrics.RecordEligibilityDenial(reason)
	v.logger.Info("enrollment denied", zap.String("reason", reason), zap.Any("details", details))
	details["reason"] = reason
	return appErrors.WithDetails(appErrors.ErrEligibility, message, details)
}
