package retention

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Desarso/chatrelay/stores"
	"github.com/robfig/cron/v3"
)

// Job periodically deletes non-starred conversations whose last
// update is older than the configured age. Starred conversations are
// never touched.
type Job struct {
	Store    stores.ConversationStore
	Schedule string
	MaxAge   time.Duration
	Logger   *log.Logger

	cron *cron.Cron
}

// NewJob creates a retention job. An empty schedule produces a job
// whose Start is a no-op.
func NewJob(store stores.ConversationStore, schedule string, maxAgeDays int) *Job {
	return &Job{
		Store:    store,
		Schedule: schedule,
		MaxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		Logger:   log.New(os.Stdout, "[Retention] ", log.LstdFlags),
	}
}

// Start registers the cron entry and begins scheduling.
func (j *Job) Start() error {
	if j.Schedule == "" {
		j.Logger.Printf("No schedule configured, retention disabled")
		return nil
	}

	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.Schedule, j.run); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", j.Schedule, err)
	}
	j.cron.Start()
	j.Logger.Printf("Scheduled %q, deleting non-starred conversations older than %v", j.Schedule, j.MaxAge)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Job) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-j.MaxAge)
	count, err := j.Store.DeleteNonStarredOlderThan(ctx, cutoff)
	if err != nil {
		j.Logger.Printf("Sweep failed: %v", err)
		return
	}
	j.Logger.Printf("Sweep deleted %d conversations last updated before %s", count, cutoff.Format(time.RFC3339))
}
