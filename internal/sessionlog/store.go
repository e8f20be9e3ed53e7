// Package sessionlog persists timer sessions. It implements
// session.SessionSink: the coordinator hands it start/end notifications and
// a single worker goroutine writes them out, so the room path never waits
// on the database.
package sessionlog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ManishG04/Convex/internal/metrics"
	"github.com/ManishG04/Convex/internal/room"
)

// FocusSession is one timer run in one room.
type FocusSession struct {
	gorm.Model
	RoomCode         string `gorm:"index"`
	Phase            string
	DurationMins     int
	ParticipantCount int
	StartedAt        time.Time
	EndedAt          *time.Time
	Completed        bool
}

type op struct {
	started      bool
	code         string
	phase        room.Phase
	at           time.Time
	endsAt       time.Time
	participants int
	completed    bool
}

const queueSize = 256

// Store records session lifecycles through a buffered queue. Enqueueing
// never blocks; when the queue is full the record is dropped and counted.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	ops chan op
	wg  sync.WaitGroup

	// open maps room code to the row id of its in-flight session.
	// Worker-owned; never touched outside the worker goroutine.
	open map[string]uint
}

// Open connects to the database named by databaseURL and migrates the
// schema. postgres:// URLs use the Postgres driver; anything else is
// treated as a SQLite DSN.
func Open(databaseURL string, logger *zap.Logger) (*Store, error) {
	var dial gorm.Dialector
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		dial = postgres.Open(databaseURL)
	} else {
		dial = sqlite.Open(databaseURL)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	if err := db.AutoMigrate(&FocusSession{}); err != nil {
		return nil, fmt.Errorf("migrate session log: %w", err)
	}

	s := &Store{
		db:   db,
		log:  logger,
		ops:  make(chan op, queueSize),
		open: make(map[string]uint),
	}
	s.wg.Add(1)
	go s.worker()
	return s, nil
}

// SessionStarted implements session.SessionSink.
func (s *Store) SessionStarted(code string, phase room.Phase, startedAt, endsAt time.Time, participants int) {
	s.enqueue(op{
		started:      true,
		code:         code,
		phase:        phase,
		at:           startedAt,
		endsAt:       endsAt,
		participants: participants,
	})
}

// SessionEnded implements session.SessionSink.
func (s *Store) SessionEnded(code string, endedAt time.Time, completed bool) {
	s.enqueue(op{code: code, at: endedAt, completed: completed})
}

func (s *Store) enqueue(o op) {
	select {
	case s.ops <- o:
	default:
		metrics.SessionWritesDropped.Inc()
		s.log.Warn("session log queue full, dropping record", zap.String("room", o.code))
	}
}

// Close drains pending writes and stops the worker.
func (s *Store) Close() {
	close(s.ops)
	s.wg.Wait()
}

func (s *Store) worker() {
	defer s.wg.Done()
	for o := range s.ops {
		if o.started {
			s.applyStart(o)
		} else {
			s.applyEnd(o)
		}
	}
}

func (s *Store) applyStart(o op) {
	// A restart closes the superseded session before opening the next.
	if id, ok := s.open[o.code]; ok {
		s.closeRow(id, o.at, false)
		delete(s.open, o.code)
	}

	row := FocusSession{
		RoomCode:         o.code,
		Phase:            string(o.phase),
		DurationMins:     int(o.endsAt.Sub(o.at) / time.Minute),
		ParticipantCount: o.participants,
		StartedAt:        o.at,
	}
	if err := s.db.Create(&row).Error; err != nil {
		s.log.Warn("session log insert failed", zap.Error(err), zap.String("room", o.code))
		return
	}
	s.open[o.code] = row.ID
}

func (s *Store) applyEnd(o op) {
	id, ok := s.open[o.code]
	if !ok {
		return // end without a recorded start, nothing to close
	}
	delete(s.open, o.code)
	s.closeRow(id, o.at, o.completed)
}

func (s *Store) closeRow(id uint, endedAt time.Time, completed bool) {
	err := s.db.Model(&FocusSession{}).Where("id = ?", id).
		Updates(map[string]any{"ended_at": endedAt, "completed": completed}).Error
	if err != nil {
		s.log.Warn("session log update failed", zap.Error(err), zap.Uint("session", id))
	}
}
