package system

import (
	"context"
	"sync"
	"time"

	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/utils"
)

// MaintenanceTask represents a recurring maintenance task.
type MaintenanceTask struct {
	Name     string
	Interval time.Duration
	LastRun  time.Time
	Fn       func(context.Context) error
}

// MaintenanceConfig contains configuration for the maintenance service.
type MaintenanceConfig struct {
	// Whether to run maintenance tasks at all.
	Enabled bool
	// How often the scheduler wakes up to check for due tasks.
	TickInterval time.Duration
	// Timeout for individual maintenance tasks.
	TaskTimeout time.Duration
	// How long a deactivated room's data is retained before purging.
	RoomRetention time.Duration
}

// DefaultMaintenanceConfig returns the default maintenance configuration.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:       true,
		TickInterval:  time.Minute,
		TaskTimeout:   5 * time.Minute,
		RoomRetention: 7 * 24 * time.Hour,
	}
}

// MaintenanceService runs the background janitor tasks: expired presence
// cleanup and purging the remnants of long-deactivated rooms.
type MaintenanceService struct {
	config         MaintenanceConfig
	presenceMgr    *managers.PresenceManager
	roomRepo       repositories.RoomRepository
	chatRepo       repositories.ChatRepository
	submissionRepo repositories.SubmissionRepository
	logger         *utils.Logger

	tasks  []*MaintenanceTask
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(
	config MaintenanceConfig,
	presenceMgr *managers.PresenceManager,
	roomRepo repositories.RoomRepository,
	chatRepo repositories.ChatRepository,
	submissionRepo repositories.SubmissionRepository,
	logger *utils.Logger,
) *MaintenanceService {
	s := &MaintenanceService{
		config:         config,
		presenceMgr:    presenceMgr,
		roomRepo:       roomRepo,
		chatRepo:       chatRepo,
		submissionRepo: submissionRepo,
		logger:         logger.Named("maintenance_service"),
		stopCh:         make(chan struct{}),
	}

	s.RegisterTask("expired_presence_cleanup", 5*time.Minute, s.CleanupExpiredPresence)
	s.RegisterTask("inactive_room_purge", time.Hour, s.PurgeInactiveRooms)

	return s
}

// RegisterTask adds a task to the schedule.
func (s *MaintenanceService) RegisterTask(name string, interval time.Duration, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &MaintenanceTask{
		Name:     name,
		Interval: interval,
		Fn:       fn,
	})
}

// Start begins running maintenance tasks on their intervals.
func (s *MaintenanceService) Start() {
	if !s.config.Enabled {
		s.logger.Info("Maintenance service disabled")
		return
	}

	s.logger.Info("Starting maintenance service")
	s.wg.Add(1)
	go s.run()
}

// Stop shuts down the scheduler and waits for in-flight tasks.
func (s *MaintenanceService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Maintenance service stopped")
}

func (s *MaintenanceService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runDueTasks()
		}
	}
}

// runDueTasks runs every task whose interval has elapsed. Tasks run
// sequentially; none of them are latency sensitive.
func (s *MaintenanceService) runDueTasks() {
	s.mu.Lock()
	due := make([]*MaintenanceTask, 0, len(s.tasks))
	now := time.Now()
	for _, task := range s.tasks {
		if now.Sub(task.LastRun) >= task.Interval {
			task.LastRun = now
			due = append(due, task)
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.TaskTimeout)
		start := time.Now()
		if err := task.Fn(ctx); err != nil {
			s.logger.Error("Maintenance task failed", err, "task", task.Name)
		} else {
			s.logger.Debug("Maintenance task completed", "task", task.Name, "duration", time.Since(start).String())
		}
		cancel()
	}
}

// CleanupExpiredPresence removes presence records whose TTL index entries
// have lapsed.
func (s *MaintenanceService) CleanupExpiredPresence(ctx context.Context) error {
	removed, err := s.presenceMgr.CleanupExpiredPresence(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("Cleaned up expired presence", "removed", removed)
	}
	return nil
}

// PurgeInactiveRooms deletes rooms deactivated longer ago than the retention
// window, along with their chat messages and queue submissions.
func (s *MaintenanceService) PurgeInactiveRooms(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.RoomRetention)
	rooms, err := s.roomRepo.FindInactiveBefore(ctx, cutoff, 100)
	if err != nil {
		return err
	}

	for _, room := range rooms {
		messages, err := s.chatRepo.DeleteMessagesByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		submissions, err := s.submissionRepo.DeleteByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		if err := s.roomRepo.Delete(ctx, room.ID); err != nil {
			return err
		}

		s.logger.Info("Purged inactive room",
			"roomId", room.ID.Hex(),
			"code", room.Code,
			"messages", messages,
			"submissions", submissions,
		)
	}

	return nil
}
