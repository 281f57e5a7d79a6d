package app

import (
	"context"
	"sync"

	"hotbot/internal/eventbus"
	"hotbot/internal/storage"
	"hotbot/pkg/logx"
)

// recorder subscribes to fetch events and persists each one as a snapshot.
// Keeping persistence out of the plugins means a slow disk never delays a
// collection run.
type recorder struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	cancel context.CancelFunc
	unsub  func()
	wg     sync.WaitGroup
}

func newRecorder(log logx.Logger, bus eventbus.Bus, store storage.Store) *recorder {
	return &recorder{
		log:   log.With(logx.String("component", "recorder")),
		bus:   bus,
		store: store,
	}
}

// start begins consuming events. No-op when storage is disabled.
func (r *recorder) start() {
	if r.store == nil || r.bus == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	ch, unsub := r.bus.Subscribe(64)
	r.unsub = unsub

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				r.handle(ctx, e)
			}
		}
	}()
}

func (r *recorder) stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.unsub()
	r.wg.Wait()
}

func (r *recorder) handle(ctx context.Context, e eventbus.Event) {
	if e.Type != eventbus.TypeFetched {
		return
	}
	fe, ok := e.Data.(eventbus.FetchedEvent)
	if !ok || len(fe.Items) == 0 {
		return
	}

	snap := storage.Snapshot{
		Plugin:    fe.Plugin,
		Tab:       fe.Tab,
		SubTab:    fe.SubTab,
		FetchedAt: fe.At,
		Items:     make([]storage.Item, 0, len(fe.Items)),
	}
	for _, it := range fe.Items {
		snap.Items = append(snap.Items, storage.Item{
			Rank:    it.Rank,
			Title:   it.Title,
			Summary: it.Summary,
			URL:     it.URL,
			Score:   it.Score,
		})
	}
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		r.log.Error("snapshot save failed",
			logx.String("plugin", fe.Plugin),
			logx.String("tab", fe.Tab),
			logx.Err(err))
		return
	}
	r.log.Debug("snapshot recorded",
		logx.String("plugin", fe.Plugin),
		logx.Int("items", len(snap.Items)))
}
