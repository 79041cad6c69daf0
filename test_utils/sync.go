package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/drpcorg/blockarena/host"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/replication"
)

// SyncData runs one read-write session between a and b in-process and
// returns once both sides said bye.
func SyncData(ctx context.Context, a, b host.Host) error {
	synca := &replication.Syncer{
		Host: a,
		Mode: replication.SyncRW,
		Name: b.Source(),
	}
	syncb := &replication.Syncer{
		Host: b,
		Mode: replication.SyncRW,
		Name: a.Source(),
	}
	defer syncb.Close()
	defer synca.Close()
	errs := make(chan error, 1)
	go func() {
		errs <- protocol.Pump(ctx, syncb, synca)
	}()
	err := protocol.Pump(ctx, synca, syncb)
	berr := <-errs
	if err == io.EOF {
		err = nil
	}
	if berr == io.EOF {
		berr = nil
	}
	if err == nil {
		err = berr
	}
	return err
}

// Link connects two hubs with a live in-process session. unlink
// closes both ends and waits for the pumps to finish.
func Link(ctx context.Context, a, b *replication.Hub) (unlink func()) {
	sa := a.Open(b.Host().Source())
	sb := b.Open(a.Host().Source())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = protocol.Pump(ctx, sa, sb)
	}()
	go func() {
		defer wg.Done()
		_ = protocol.Pump(ctx, sb, sa)
	}()
	return func() {
		a.Remove(sa)
		b.Remove(sb)
		wg.Wait()
	}
}
