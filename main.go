package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"bitbucket.org/mmdatafocus/bakestock_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func businessIdFrom(c *gin.Context) (string, bool) {
	businessId := strings.TrimSpace(c.GetHeader("x-business-id"))
	if businessId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x-business-id header is required"})
		return "", false
	}
	c.Request = c.Request.WithContext(utils.SetBusinessIdInContext(c.Request.Context(), businessId))
	return businessId, true
}

func readUploadFile(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return nil, false
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	defer f.Close()
	fileBytes, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return fileBytes, true
}

// uploadGuard keeps uploads at-most-one-in-flight per business. Best effort:
// if Redis is down the MySQL advisory lock in the workflow still serializes
// posting safely.
func uploadGuard(businessId string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	return locker.Obtain(context.Background(), "upload:"+businessId, 2*time.Minute, nil)
}

func salesUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		businessId, ok := businessIdFrom(c)
		if !ok {
			return
		}
		fileBytes, ok := readUploadFile(c)
		if !ok {
			return
		}

		lock, err := uploadGuard(businessId)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				c.JSON(http.StatusConflict, gin.H{"error": "an upload is already in progress for this business"})
				return
			}
			config.LogError(logger, "main.go", "salesUploadHandler", "Obtaining upload lock", businessId, err)
		}
		if lock != nil {
			defer lock.Release(context.Background())
		}

		userName, _ := utils.GetUserNameFromContext(c.Request.Context())
		outcome, err := workflow.ProcessSalesUploadWorkflow(c.Request.Context(), config.GetDB(), logger, workflow.SalesUploadMessage{
			BusinessId: businessId,
			FileBytes:  fileBytes,
			UploadedBy: userName,
		})
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				status = http.StatusConflict
			}
			body := gin.H{"error": err.Error()}
			if outcome != nil {
				// Deduction writes are sequential; the report says exactly
				// which updates committed before the failure.
				body["report"] = outcome.Report
			}
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

func kitchenUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		businessId, ok := businessIdFrom(c)
		if !ok {
			return
		}
		fileBytes, ok := readUploadFile(c)
		if !ok {
			return
		}

		result, err := workflow.ProcessKitchenUploadWorkflow(c.Request.Context(), config.GetDB(), logger, workflow.KitchenUploadMessage{
			BusinessId: businessId,
			FileBytes:  fileBytes,
		})
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type reportQuery struct {
	Date   string `form:"date" binding:"required,dateymd"`
	Outlet string `form:"outlet" binding:"required"`
}

func reportDownloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := businessIdFrom(c)
		if !ok {
			return
		}
		var q reportQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB()
		entry, err := models.GetReconciliationHistory(db.WithContext(c.Request.Context()), businessId, q.Date, q.Outlet)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no reconciliation found for that date and outlet"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result, err := workflow.ResultFromHistory(*entry)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		f, err := workflow.BuildDiscrepancyReportXlsx(result, models.RawConsumptionResult{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=discrepancy_%s_%s.xlsx", q.Outlet, q.Date))
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "main.go", "reportDownloadHandler", "Writing xlsx", q, err)
		}
	}
}

type restoreRequest struct {
	Date string `json:"date" binding:"required,dateymd"`
}

func reconciliationRestoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		businessId, ok := businessIdFrom(c)
		if !ok {
			return
		}
		var req restoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := workflow.AcquireReconcilePostingLock(tx, businessId); err != nil {
				return err
			}
			defer workflow.ReleaseReconcilePostingLock(tx, businessId)
			return workflow.RestoreReconciliationDate(c.Request.Context(), tx, logger, businessId, req.Date)
		})
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Binding tag for YYYY-MM-DD dates; stricter than datetime= because it
	// rejects out-of-range components the same way the workflow layer does.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("dateymd", func(fl validator.FieldLevel) bool {
			return utils.ValidDateString(fl.Field().String())
		})
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		if userName := strings.TrimSpace(c.GetHeader("x-user-name")); userName != "" {
			ctx = utils.SetUserNameInContext(ctx, userName)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-business-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/sales/upload", salesUploadHandler())
	r.POST("/api/kitchen/upload", kitchenUploadHandler())
	r.GET("/api/reconciliation/report", reportDownloadHandler())
	r.DELETE("/api/reconciliation", reconciliationRestoreHandler())
	// Outlets are managed by a separate CRUD service; it busts our cache here.
	r.DELETE("/api/outlets/cache", func(c *gin.Context) {
		businessId, ok := businessIdFrom(c)
		if !ok {
			return
		}
		if err := models.InvalidateOutletCache(businessId); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining so they don't start new work.
	cancelDispatcher()

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
