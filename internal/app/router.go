package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/zyu-enrollment-api/api/swagger"
	"github.com/noah-isme/zyu-enrollment-api/internal/handler"
	"github.com/noah-isme/zyu-enrollment-api/internal/middleware"
	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/service"
	"github.com/noah-isme/zyu-enrollment-api/pkg/config"
	"github.com/noah-isme/zyu-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/zyu-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/zyu-enrollment-api/pkg/middleware/requestid"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Auth    *service.AuthService
	Metrics *service.MetricsService

	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	CourseHandler     *handler.CourseHandler
	SubjectHandler    *handler.SubjectHandler
	EnrollmentHandler *handler.EnrollmentHandler
	EventHandler      *handler.EventHandler
	TodoHandler       *handler.TodoHandler
	DashboardHandler  *handler.DashboardHandler
	MetricsHandler    *handler.MetricsHandler
}

// @title ZY University Enrollment API
// @version 1.0.0
// @description Course catalogue, applications and staff administration.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// NewRouter builds the gin engine with every route registered.
func NewRouter(p RouterParams) *gin.Engine {
	if p.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(p.Logger))
	r.Use(corsmiddleware.New(p.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(p.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", p.MetricsHandler.Health)
	r.GET("/ready", p.MetricsHandler.Ready)
	r.GET("/metrics", p.MetricsHandler.Prometheus)
	if p.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(p.Config.APIPrefix)
	authenticated := middleware.JWT(p.Auth)
	staffOnly := middleware.RequireRoles(models.RoleStaff)
	studentOnly := middleware.RequireRoles(models.RoleStudent)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(p.Logger, action, resource)
	}

	auth := api.Group("/auth")
	{
		auth.POST("/register", p.AuthHandler.Register)
		auth.POST("/login", p.AuthHandler.Login)
		auth.POST("/logout", p.AuthHandler.Logout)
		auth.POST("/password-reset/send", p.AuthHandler.SendResetCode)
		auth.POST("/password-reset/verify", p.AuthHandler.VerifyResetCode)
		auth.POST("/password-reset/reset", p.AuthHandler.ResetPassword)
		auth.GET("/me", authenticated, p.UserHandler.Me)
		auth.POST("/change-password", authenticated, p.AuthHandler.ChangePassword)
	}

	profile := api.Group("/profile", authenticated)
	{
		profile.GET("", p.UserHandler.Me)
		profile.PUT("", p.UserHandler.Update)
		profile.DELETE("", p.UserHandler.Delete)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", p.CourseHandler.Catalog)
		courses.GET("/popular", p.CourseHandler.Popular)
		courses.GET("/:id", p.CourseHandler.Get)
		courses.GET("/:id/subjects", p.CourseHandler.Subjects)
		courses.POST("/:id/enroll", authenticated, studentOnly, p.EnrollmentHandler.Apply)
	}
	api.GET("/certificates/download", p.EnrollmentHandler.Download)

	me := api.Group("/me", authenticated, studentOnly)
	{
		me.GET("/enrollments", p.EnrollmentHandler.MyEnrollments)
		me.GET("/courses", p.EnrollmentHandler.MyCourses)
	}

	staff := api.Group("/staff", authenticated, staffOnly)
	staff.GET("/dashboard", p.DashboardHandler.Staff)

	enrollments := staff.Group("/enrollments")
	{
		enrollments.GET("", p.EnrollmentHandler.List)
		enrollments.GET("/pending", p.EnrollmentHandler.Pending)
		enrollments.GET("/stats", p.EnrollmentHandler.Stats)
		enrollments.GET("/export", p.EnrollmentHandler.Export)
		enrollments.POST("/:id/approve", audit("approve", "enrollment"), p.EnrollmentHandler.Approve)
		enrollments.POST("/:id/reject", audit("reject", "enrollment"), p.EnrollmentHandler.Reject)
		enrollments.GET("/:id/certificate", p.EnrollmentHandler.Certificate)
	}

	staffCourses := staff.Group("/courses")
	{
		staffCourses.GET("", p.CourseHandler.ListAll)
		staffCourses.GET("/stats", p.CourseHandler.Stats)
		staffCourses.POST("", audit("create", "course"), p.CourseHandler.Create)
		staffCourses.PUT("/:id", audit("update", "course"), p.CourseHandler.Update)
		staffCourses.PATCH("/:id/status", audit("set_status", "course"), p.CourseHandler.SetStatus)
		staffCourses.POST("/:id/subjects", audit("add_subject", "course"), p.CourseHandler.AddSubject)
		staffCourses.DELETE("/:id/subjects/:subjectId", audit("remove_subject", "course"), p.CourseHandler.RemoveSubject)
	}

	subjects := staff.Group("/subjects")
	{
		subjects.GET("", p.SubjectHandler.List)
		subjects.GET("/available", p.SubjectHandler.ListAvailable)
		subjects.GET("/stats", p.SubjectHandler.Stats)
		subjects.POST("", audit("create", "subject"), p.SubjectHandler.Create)
		subjects.PUT("/:id", audit("update", "subject"), p.SubjectHandler.Update)
		subjects.PATCH("/:id/status", audit("set_status", "subject"), p.SubjectHandler.SetStatus)
		subjects.DELETE("/:id", audit("delete", "subject"), p.SubjectHandler.Delete)
	}

	events := staff.Group("/events")
	{
		events.GET("", p.EventHandler.List)
		events.POST("", audit("create", "event"), p.EventHandler.Create)
		events.DELETE("/:id", audit("delete", "event"), p.EventHandler.Delete)
	}

	todos := staff.Group("/todos")
	{
		todos.GET("", p.TodoHandler.List)
		todos.POST("", p.TodoHandler.Create)
		todos.PUT("/:id", p.TodoHandler.Update)
		todos.PATCH("/:id/toggle", p.TodoHandler.Toggle)
		todos.DELETE("/:id", p.TodoHandler.Delete)
	}

	return r
}
