package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/database"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotificationPayload is what eventually reaches the player.
type NotificationPayload struct {
	ReservationID string    `json:"reservation_id"`
	PlayerID      int64     `json:"player_id"`
	PlayerName    string    `json:"player_name"`
	Phone         string    `json:"phone,omitempty"`
	Kind          string    `json:"kind"`
	VenueName     string    `json:"venue_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Price         int64     `json:"price"`
	Status        string    `json:"status"`
}

// Notifier delivers one notification. Implementations live outside this
// core; delivery failures are retried here and never reach the booking
// path.
type Notifier interface {
	Notify(ctx context.Context, payload NotificationPayload) error
}

// LogNotifier is the default sink: it writes the notification to the
// log. Real channels (push, SMS) plug in behind the same interface.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, payload NotificationPayload) error {
	n.Logger.Info().
		Str("kind", payload.Kind).
		Str("reservation_id", payload.ReservationID).
		Int64("player_id", payload.PlayerID).
		Str("venue", payload.VenueName).
		Time("start", payload.StartTime).
		Msg("notification")
	return nil
}

// NotifyWorker consumes notify_queue tasks and hands them to the
// Notifier. Tasks are persisted first, then scheduled via redis when
// available, with the in-memory channel and DB polling as fallbacks.
type NotifyWorker struct {
	db            *database.DB
	notifier      Notifier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotifyTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewNotifyWorker builds a worker with sane defaults.
func NewNotifyWorker(db *database.DB, notifier Notifier, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		db:            db,
		notifier:      notifier,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotifyTask, 128),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueNotification persists a task for the reservation and schedules
// it. Implements domain.NotifyQueue.
func (w *NotifyWorker) EnqueueNotification(ctx context.Context, kind string, r *models.Reservation) error {
	if kind == "" {
		return errors.New("notification kind is required")
	}
	if r == nil || r.ID == "" {
		return errors.New("reservation is required")
	}

	payload := NotificationPayload{
		ReservationID: r.ID,
		PlayerID:      r.PlayerID,
		PlayerName:    r.PlayerName,
		Phone:         r.Phone,
		Kind:          kind,
		VenueName:     r.VenueName,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Price:         r.Price,
		Status:        r.Status,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotifyTask{
		Kind:          kind,
		ReservationID: r.ID,
		Payload:       string(payloadBytes),
		Status:        "pending",
		CreatedAt:     time.Now(),
	}

	if err := w.db.CreateNotifyTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notify task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("notify_worker: redis push failed, fallback to memory queue")
		} else {
			w.markQueued(ctx, task.ID)
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
		w.markQueued(ctx, task.ID)
	default:
		// Строка остается pending, её подхватит поллинг
		w.logger.Warn().Int64("task_id", task.ID).Msg("notify_worker: in-memory queue full, task left to polling")
	}

	return nil
}

// markQueued снимает задачу с поллинга: доставку взял на себя быстрый путь.
// Ошибка не критична - поллинг доставит задачу повторно.
func (w *NotifyWorker) markQueued(ctx context.Context, id int64) {
	if err := w.db.UpdateNotifyTaskStatus(ctx, id, "queued", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", id).Msg("notify_worker: mark queued")
	}
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task models.NotifyTask) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return w.redis.LPush(ctx, w.redisQueueKey, raw).Err()
}

// Start launches the main loop; stops when ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify_worker: started")
	defer w.logger.Info().Msg("notify_worker: stopped")

	// Задачи, не доставленные до рестарта, возвращаются на поллинг
	if n, err := w.db.ResetQueuedNotifyTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("notify_worker: reset queued tasks")
	} else if n > 0 {
		w.logger.Warn().Int64("count", n).Msg("notify_worker: requeued tasks stuck from previous run")
	}
	w.reportFailedBacklog(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingNotifyTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("notify_worker: fetch pending")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotifyWorker) tryLocalQueue() (models.NotifyTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotifyTask{}, false
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (models.NotifyTask, bool) {
	if w.redis == nil {
		return models.NotifyTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.NotifyTask{}, false
		}
		w.logger.Error().Err(err).Msg("notify_worker: redis BRPOP error")
		return models.NotifyTask{}, false
	}
	if len(res) != 2 {
		return models.NotifyTask{}, false
	}
	var task models.NotifyTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("notify_worker: decode redis task")
		return models.NotifyTask{}, false
	}
	return task, true
}

// reportFailedBacklog логирует мертвые задачи, оставшиеся с прошлых запусков.
// Они ждут ручного разбора и сами не реанимируются.
func (w *NotifyWorker) reportFailedBacklog(ctx context.Context) {
	failed, err := w.db.GetFailedNotifyTasks(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("notify_worker: fetch failed backlog")
		return
	}
	if len(failed) > 0 {
		w.logger.Warn().Int("count", len(failed)).Msg("notify_worker: dead-lettered tasks awaiting review")
	}
}

func (w *NotifyWorker) processTask(ctx context.Context, task *models.NotifyTask) {
	// Задача могла прийти двумя путями (redis и поллинг);
	// доставленную второй раз не трогаем
	current, err := w.db.GetNotifyTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: reread task")
		return
	}
	if current.Status == "completed" || current.Status == "failed" {
		return
	}
	task.RetryCount = current.RetryCount

	var payload NotificationPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.notifier.Notify(ctx, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification("delivered")
	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: mark completed")
	}
}

func (w *NotifyWorker) retryOrFail(ctx context.Context, task *models.NotifyTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncNotification("retried")
	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: mark retry")
	}
}

func (w *NotifyWorker) failTask(ctx context.Context, task *models.NotifyTask, cause error) {
	metrics.IncNotification("dead_letter")
	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task *models.NotifyTask) {
	if w.redis == nil {
		return
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, raw).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("notify_worker: dead letter push")
	}
}
