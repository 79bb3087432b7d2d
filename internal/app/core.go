package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/analytics"
	pricerepo "github.com/ovaphlow/pitchfork/service-market-core/internal/analytics/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/catalog"
	catalogrepo "github.com/ovaphlow/pitchfork/service-market-core/internal/catalog/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity"
	idrepo "github.com/ovaphlow/pitchfork/service-market-core/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/order"
	orderrepo "github.com/ovaphlow/pitchfork/service-market-core/internal/order/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-market-core/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/database"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/utilities"
)

// Core is the in-process surface the CLI/UI layer calls into.
type Core struct {
	Identities *identity.Service
	Sessions   *session.Registry
	Catalog    *catalog.Service
	Orders     *order.Manager
	Analytics  *analytics.Engine
	Sweeper    *session.Sweeper
}

// Options carries the knobs read from the environment at startup.
type Options struct {
	Hasher        identity.PasswordHasher
	IDs           order.IDGenerator
	Throttle      *session.LoginThrottle
	SweepSchedule string
}

// OptionsFromEnv reads SNOWFLAKE_NODE, LOGIN_RATE_PER_MINUTE, LOGIN_BURST and
// SESSION_SWEEP_SCHEDULE.
func OptionsFromEnv() (Options, error) {
	ids, err := utilities.IDGeneratorFromEnv()
	if err != nil {
		return Options{}, err
	}
	return Options{
		IDs:           ids,
		Throttle:      session.ThrottleFromEnv(),
		SweepSchedule: session.ScheduleFromEnv(),
	}, nil
}

// New wires every component over one store. The sweeper is built but not
// started.
func New(store *database.Store, opts Options, logger *zap.SugaredLogger) (*Core, error) {
	logger = utilities.OrNop(logger)
	if opts.IDs == nil {
		ids, err := utilities.NewIDGenerator(1)
		if err != nil {
			return nil, err
		}
		opts.IDs = ids
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = session.DefaultSweepSchedule
	}

	identities := idrepo.NewIdentityRepo(store)
	reg := session.NewRegistry(identities, sessionrepo.NewSessionRepo(store), opts.Hasher, logger.Named("session"))
	reg.Throttle = opts.Throttle

	sweeper, err := session.NewSweeper(reg, opts.SweepSchedule, logger.Named("sweeper"))
	if err != nil {
		return nil, fmt.Errorf("build sweeper: %w", err)
	}

	return &Core{
		Identities: identity.NewService(identities, opts.Hasher, logger.Named("identity")),
		Sessions:   reg,
		Catalog:    catalog.NewService(catalogrepo.NewCatalogRepo(store), logger.Named("catalog")),
		Orders:     order.NewManager(orderrepo.NewOrderRepo(store), opts.IDs, logger.Named("order")),
		Analytics:  analytics.NewEngine(pricerepo.NewPriceRepo(store), logger.Named("analytics")),
		Sweeper:    sweeper,
	}, nil
}
