package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
)

// Handlers bundles the API handlers mounted by RegisterRoutes.
type Handlers struct {
	Enrollments *EnrollmentHandler
	Advisors    *AdvisorHandler
	Grades      *GradeHandler
	Scheduling  *SchedulingHandler
}

// RegisterRoutes mounts the authenticated API on router. auth must populate
// middleware.ContextUserKey.
func RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc, h Handlers) {
	students := middleware.RequireRoles(models.RoleStudent)
	faculty := middleware.RequireRoles(models.RoleFaculty)
	admin := middleware.RequireRoles(models.RoleAdmin)
	facultyOrAdmin := middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin)
	anyone := middleware.RequireRoles(models.RoleStudent, models.RoleFaculty, models.RoleAdmin)
	recordReaders := middleware.RequireRolesOrSelf(models.RoleFaculty, models.RoleAdmin)

	api := router.Group("", auth)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", anyone, h.Enrollments.List)
	enrollments.POST("", students, h.Enrollments.Request)
	enrollments.POST("/approve", faculty, h.Enrollments.Approve)
	enrollments.POST("/direct", faculty, h.Enrollments.DirectEnroll)
	enrollments.POST("/:id/withdraw", students, h.Enrollments.Withdraw)

	api.PUT("/advisors", admin, h.Advisors.Assign)

	grades := api.Group("/grades")
	grades.POST("", facultyOrAdmin, h.Grades.Submit)
	grades.GET("", admin, h.Grades.List)
	grades.POST("/approve", admin, h.Grades.Approve)

	records := api.Group("/students/:id")
	records.GET("/transcript", recordReaders, h.Grades.Transcript)
	records.GET("/transcript/export", recordReaders, h.Grades.ExportTranscript)
	records.GET("/cgpa", recordReaders, h.Grades.CGPA)

	api.POST("/availability", faculty, h.Scheduling.AddAvailability)
	api.DELETE("/availability/:id", faculty, h.Scheduling.DeleteAvailability)

	facultyRoutes := api.Group("/faculty/:id")
	facultyRoutes.GET("/availability", anyone, h.Scheduling.ListAvailability)
	facultyRoutes.GET("/slots", anyone, h.Scheduling.Slots)
	facultyRoutes.GET("/conflicts", anyone, h.Scheduling.Conflicts)

	meetings := api.Group("/meetings")
	meetings.POST("", students, h.Scheduling.RequestMeeting)
	meetings.GET("", anyone, h.Scheduling.ListMeetings)
	meetings.POST("/:id/decision", faculty, h.Scheduling.DecideMeeting)
	meetings.POST("/:id/cancel", students, h.Scheduling.CancelMeeting)
}
