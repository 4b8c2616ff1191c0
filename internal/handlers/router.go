package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/classroom-connect/quiz-service/internal/services"
	"github.com/classroom-connect/quiz-service/internal/utils"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

type HandlerManager struct {
	quizHandler    *QuizHandler
	attemptHandler *AttemptHandler
	gradingHandler *GradingHandler
	syncHandler    *SyncHandler
	serviceManager services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		quizHandler:    NewQuizHandler(serviceManager.Quiz(), validator, logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler: NewGradingHandler(serviceManager.Grading(), validator, logger),
		syncHandler:    NewSyncHandler(serviceManager.Sync(), serviceManager.Export(), logger),
		serviceManager: serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes; identity is forwarded by the gateway
	v1 := router.Group("/api/v1")
	v1.Use(IdentityMiddleware())
	v1.Use(RequireAuthMiddleware())
	{
		// Quiz routes
		quizzes := v1.Group("/quizzes")
		{
			quizzes.POST("", hm.quizHandler.CreateQuiz)
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.GET("/:id/details", hm.quizHandler.GetQuizWithQuestions)
			quizzes.PUT("/:id", hm.quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", hm.quizHandler.DeleteQuiz)
			quizzes.POST("/:id/end", hm.quizHandler.EndQuiz)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.POST("/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/details", hm.attemptHandler.GetAttemptWithDetails)
			attempts.POST("/:id/regrade", hm.gradingHandler.RegradeAttempt)
			attempts.GET("/quiz/:quiz_id", hm.attemptHandler.GetAttemptsByQuiz)
		}

		// Manual grading routes
		answers := v1.Group("/answers")
		{
			answers.POST("/:id/grade", hm.gradingHandler.GradeTextAnswer)
		}

		// Marks sync routes
		sync := v1.Group("/sync")
		{
			sync.GET("/overview", hm.syncHandler.SyncOverview)
			sync.GET("/status", hm.syncHandler.APIStatus)
			sync.POST("/all", hm.syncHandler.SyncAll)
			sync.POST("/attempts/:id", hm.syncHandler.SyncAttempt)
		}

		// Export routes
		export := v1.Group("/export")
		{
			export.GET("/courses/:course_id", hm.syncHandler.ExportCourseResults)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{
				"status":  "unhealthy",
				"service": "quiz-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-service",
		})
	})
}
