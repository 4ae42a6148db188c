package trading

import (
	"context"
	"math/rand"
	"time"

	"trading-simulator/src/helpers"
	"trading-simulator/src/interfaces"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"
	"trading-simulator/src/utils"
)

// -----------------------------------------------------------------------------
// LobbyScheduler drives the simulation: lobby discovery, periodic snapshot
// broadcasts, queue draining, order flow and real history refreshes.
// -----------------------------------------------------------------------------

type LobbyScheduler struct {
	Config      *models.MConfig
	Engine      *Engine
	Orders      *OrderEngine
	Cache       *RealHistoryCache
	Sessions    interfaces.ISessionRegistry
	Broadcaster interfaces.IBroadcaster
	Logger      *logger.Logger

	// OnRefresh is called after every real history refresh with the number of
	// populated symbols.
	OnRefresh func(populated int)

	rng   *rand.Rand // only used by the discovery task goroutine
	tasks []*RepeatingTask
}

// -----------------------------------------------------------------------------

func NewLobbyScheduler(
	cfg *models.MConfig,
	engine *Engine,
	orders *OrderEngine,
	cache *RealHistoryCache,
	sessions interfaces.ISessionRegistry,
	broadcaster interfaces.IBroadcaster,
	rng *rand.Rand,
	log *logger.Logger,
) *LobbyScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &LobbyScheduler{
		Config:      cfg,
		Engine:      engine,
		Orders:      orders,
		Cache:       cache,
		Sessions:    sessions,
		Broadcaster: broadcaster,
		Logger:      log.Named("LobbyScheduler"),
		rng:         rng,
	}
}

// -----------------------------------------------------------------------------

// Start launches every periodic task. The real history refresh runs immediately.
func (s *LobbyScheduler) Start(ctx context.Context) {
	t := s.Config.Trading
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	s.tasks = []*RepeatingTask{
		NewRepeatingTask("refresh-real-history", Every(time.Duration(t.HistoryRefreshMinutes)*time.Minute), true,
			s.Logger, s.RefreshRealHistory),
		NewRepeatingTask("apply-faked-history", Every(ms(t.ApplyIntervalMs)), false,
			s.Logger, func(context.Context) { s.Engine.ApplyFakedHistory() }),
		NewRepeatingTask("update-orders", Every(ms(t.OrderIntervalMs)), false,
			s.Logger, func(ctx context.Context) { s.Orders.UpdatePrice(ctx) }),
		NewRepeatingTask("broadcast-all", Every(ms(t.BroadcastIntervalMs)), false,
			s.Logger, func(context.Context) { s.BroadcastAll() }),
		NewRepeatingTask("discover-lobbies", s.discoveryInterval, false,
			s.Logger, func(context.Context) { s.DiscoverLobbies() }),
	}

	for _, task := range s.tasks {
		task.Start(ctx)
	}
	s.Logger.Info("Started %d tasks", len(s.tasks))
}

// -----------------------------------------------------------------------------

// Stop halts every task and waits for in-flight cycles.
func (s *LobbyScheduler) Stop() {
	for _, task := range s.tasks {
		task.Stop()
	}
	s.Logger.Info("Stopped")
}

// -----------------------------------------------------------------------------

func (s *LobbyScheduler) discoveryInterval() time.Duration {
	t := s.Config.Trading
	return utils.RandomDelay(s.rng,
		time.Duration(t.DiscoveryMinDelayMs)*time.Millisecond,
		time.Duration(t.DiscoveryJitterMs)*time.Millisecond)
}

// -----------------------------------------------------------------------------

// DiscoverLobbies initializes lobbies referenced by live sessions, broadcasts
// their history, then the shared order book. Idle lobbies are pruned.
func (s *LobbyScheduler) DiscoverLobbies() {
	active := s.Sessions.ActiveLobbyIDs()
	s.Engine.Touch(active...)

	for _, lobby := range active {
		lobby := lobby
		helpers.SafeRun(s.Logger, "discover lobby "+lobby, func() error {
			if !s.Engine.HasLobby(lobby) {
				s.Engine.AddHistory(lobby)
			}
			update, _ := s.Engine.GetHistory(lobby)
			s.Broadcaster.Emit(models.EventUpdateHistory, update)
			return nil
		})
	}

	if len(active) > 0 {
		s.Broadcaster.Emit(models.EventUpdateOrders, s.Orders.Get())
	}

	s.Engine.Prune(time.Duration(s.Config.Trading.LobbyTTLSeconds) * time.Second)
}

// -----------------------------------------------------------------------------

// BroadcastAll pushes every known lobby's history and the order book.
func (s *LobbyScheduler) BroadcastAll() {
	for _, lobby := range s.Engine.Lobbies() {
		lobby := lobby
		helpers.SafeRun(s.Logger, "broadcast lobby "+lobby, func() error {
			update, ok := s.Engine.GetHistory(lobby)
			if ok {
				s.Broadcaster.Emit(models.EventUpdateHistory, update)
			}
			return nil
		})
	}

	s.Broadcaster.Emit(models.EventUpdateOrders, s.Orders.Get())
}

// -----------------------------------------------------------------------------

// RefreshRealHistory fetches missing real history and merges it into every lobby.
func (s *LobbyScheduler) RefreshRealHistory(ctx context.Context) {
	s.Cache.Refresh(ctx)
	s.Engine.UpdateAllHistory()

	if s.OnRefresh != nil {
		s.OnRefresh(s.Cache.Populated())
	}
}
