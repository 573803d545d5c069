package service

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// EnrollmentAction is an event applied to an enrollment.
type EnrollmentAction string

const (
	EnrollmentActionRequest        EnrollmentAction = "request"
	EnrollmentActionFacultyApprove EnrollmentAction = "faculty_approve"
	EnrollmentActionFacultyReject  EnrollmentAction = "faculty_reject"
	EnrollmentActionAdvisorApprove EnrollmentAction = "advisor_approve"
	EnrollmentActionAdvisorReject  EnrollmentAction = "advisor_reject"
	EnrollmentActionDirectEnroll   EnrollmentAction = "direct_enroll"
	EnrollmentActionWithdraw       EnrollmentAction = "withdraw"
)

// EnrollmentActor is the relationship of the caller to the enrollment.
type EnrollmentActor string

const (
	EnrollmentActorStudent       EnrollmentActor = "student"
	EnrollmentActorCourseFaculty EnrollmentActor = "course_faculty"
	EnrollmentActorAdvisor       EnrollmentActor = "advisor"
)

// enrollmentStatusNew is the pseudo-state of an enrollment not yet persisted.
const enrollmentStatusNew models.EnrollmentStatus = ""

type enrollmentEdge struct {
	from   models.EnrollmentStatus
	action EnrollmentAction
}

type enrollmentRule struct {
	to    models.EnrollmentStatus
	actor EnrollmentActor
}

var enrollmentTransitions = map[enrollmentEdge]enrollmentRule{
	{enrollmentStatusNew, EnrollmentActionRequest}:                          {models.EnrollmentStatusPendingFaculty, EnrollmentActorStudent},
	{models.EnrollmentStatusPendingFaculty, EnrollmentActionFacultyApprove}: {models.EnrollmentStatusPendingAdvisor, EnrollmentActorCourseFaculty},
	{models.EnrollmentStatusPendingFaculty, EnrollmentActionFacultyReject}:  {models.EnrollmentStatusRejected, EnrollmentActorCourseFaculty},
	{models.EnrollmentStatusPendingAdvisor, EnrollmentActionAdvisorApprove}: {models.EnrollmentStatusEnrolled, EnrollmentActorAdvisor},
	{models.EnrollmentStatusPendingAdvisor, EnrollmentActionAdvisorReject}:  {models.EnrollmentStatusRejected, EnrollmentActorAdvisor},
	{enrollmentStatusNew, EnrollmentActionDirectEnroll}:                     {models.EnrollmentStatusEnrolled, EnrollmentActorCourseFaculty},
	{models.EnrollmentStatusPendingFaculty, EnrollmentActionDirectEnroll}:   {models.EnrollmentStatusEnrolled, EnrollmentActorCourseFaculty},
	{models.EnrollmentStatusPendingAdvisor, EnrollmentActionDirectEnroll}:   {models.EnrollmentStatusEnrolled, EnrollmentActorCourseFaculty},
	{models.EnrollmentStatusEnrolled, EnrollmentActionWithdraw}:             {models.EnrollmentStatusWithdrawn, EnrollmentActorStudent},
}

// TransitionEnrollment applies action to an enrollment in state from. Pairs
// missing from the transition table fail with a validation error; a known pair
// invoked by the wrong kind of actor is forbidden.
func TransitionEnrollment(from models.EnrollmentStatus, action EnrollmentAction, actor EnrollmentActor) (models.EnrollmentStatus, error) {
	rule, ok := enrollmentTransitions[enrollmentEdge{from: from, action: action}]
	if !ok {
		return from, appErrors.WithDetails(appErrors.ErrValidation,
			fmt.Sprintf("cannot %s an enrollment that is %s", action, statusLabel(from)),
			map[string]interface{}{"status": statusLabel(from), "action": string(action)})
	}
	if rule.actor != actor {
		return from, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s may only be performed by the %s", action, rule.actor))
	}
	return rule.to, nil
}

func statusLabel(status models.EnrollmentStatus) string {
	if status == enrollmentStatusNew {
		return "new"
	}
	return string(status)
}

// decisionAction maps an approve/reject decision to the stage-specific action.
func decisionAction(stage EnrollmentActor, decision string) EnrollmentAction {
	approve := decision == DecisionApprove
	switch {
	case stage == EnrollmentActorAdvisor && approve:
		return EnrollmentActionAdvisorApprove
	case stage == EnrollmentActorAdvisor:
		return EnrollmentActionAdvisorReject
	case approve:
		return EnrollmentActionFacultyApprove
	default:
		return EnrollmentActionFacultyReject
	}
}

// elapsedDays counts whole days between start and now, rounding down.
func elapsedDays(start, now time.Time) int {
	return int(math.Floor(now.Sub(start).Hours() / 24))
}

// checkWithdrawalWindow allows withdrawal while at most windowDays whole days
// have passed since the semester start.
func checkWithdrawalWindow(start, now time.Time, windowDays int) error {
	days := elapsedDays(start, now)
	if days <= windowDays {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrValidation,
		fmt.Sprintf("withdrawal window closed: %d days have passed since the semester started (limit %d)", days, windowDays),
		map[string]interface{}{"elapsed_days": days, "window_days": windowDays})
}

// withElapsedDays annotates a rejected withdrawal with the days elapsed since
// the semester started. Errors other than validation failures pass through.
func withElapsedDays(err error, days int) error {
	appErr := appErrors.FromError(err)
	if appErr.Code != appErrors.ErrValidation.Code {
		return err
	}
	details := map[string]interface{}{"elapsed_days": days}
	for key, value := range appErr.Details {
		details[key] = value
	}
	return appErrors.WithDetails(appErr,
		fmt.Sprintf("%s: %d days have passed since the semester started", appErr.Message, days), details)
}
