package handler

import (
	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db      *gorm.DB
	tracker *service.Tracker
	system  *service.SystemSettingService
	coach   *service.CoachService
	board   *service.CoachBoard
	balance config.Balance
}

// NewAPI constructs a handler set around the session tracker.
// store is shared with the tracker so the daily quote cache lives next to the snapshots.
func NewAPI(gdb *gorm.DB, tracker *service.Tracker, store service.BlobStore, balance config.Balance) *API {
	systemService := service.NewSystemSettingService(gdb)
	coachService := service.NewCoachService(systemService, store)

	return &API{
		db:      gdb,
		tracker: tracker,
		system:  systemService,
		coach:   coachService,
		board:   service.NewCoachBoard(coachService),
		balance: balance,
	}
}

// System exposes the settings service for startup seeding.
func (a *API) System() *service.SystemSettingService {
	return a.system
}

// Coach exposes the coach service so callers can override endpoints.
func (a *API) Coach() *service.CoachService {
	return a.coach
}

// Board exposes the background coach board.
func (a *API) Board() *service.CoachBoard {
	return a.board
}
