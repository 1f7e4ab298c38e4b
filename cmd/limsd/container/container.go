package container

import (
	"github.com/anatraz/limsbridge/cmd/limsd/service"
	"github.com/anatraz/limsbridge/common/bootstrap"
	"github.com/anatraz/limsbridge/common/repository"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	Store *repository.Store

	Router    *service.Router
	Stainer   *service.StainerClient
	Staining  *service.StainingActions
	Listener  *service.Listener
	Processor *service.Processor
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	store := repository.NewStore(components.DB, components.Redis, cfg.Routing.StepCacheTTL)

	router := service.NewRouter(store, log, components.Metrics)
	stainer := service.NewStainerClient(cfg.HL7, log, components.Metrics)
	staining := service.NewStainingActions(store, stainer, log)

	listener := service.NewListener(cfg.HL7, components.Queue, components.Cache, log, components.Metrics)
	processor := service.NewProcessor(components.Queue, staining, cfg.HL7.ProcessWorkers, log, components.Metrics)

	return &Container{
		Components: components,
		Store:      store,
		Router:     router,
		Stainer:    stainer,
		Staining:   staining,
		Listener:   listener,
		Processor:  processor,
	}, nil
}
