package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ldap-admin/internal/directory"
	"ldap-admin/internal/model"
)

const DefaultProbeBatchSize = 10

// sessionOpener is satisfied by *directory.Client.
type sessionOpener interface {
	Open(ctx context.Context) (*directory.Session, error)
}

// ChildProber counts the immediate children of directory entries. Every probe uses
// its own service-bound connection.
type ChildProber struct {
	client    sessionOpener
	batchSize int
}

func NewChildProber(client sessionOpener, batchSize int) *ChildProber {
	if batchSize <= 0 {
		batchSize = DefaultProbeBatchSize
	}

	return &ChildProber{client: client, batchSize: batchSize}
}

// Annotate attaches a child summary to each entry, preserving order. Batches run one
// after another and the probes inside a batch run concurrently, so at most batchSize
// probe connections are open at once. A failed probe reports no children.
func (p *ChildProber) Annotate(ctx context.Context, entries []model.DirectoryEntry) []model.TreeEntry {
	out := make([]model.TreeEntry, len(entries))

	for start := 0; start < len(entries); start += p.batchSize {
		end := min(start+p.batchSize, len(entries))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				out[i] = model.NewTreeEntry(entries[i], p.summarize(ctx, entries[i].DN))
				return nil
			})
		}
		_ = g.Wait()
	}

	return out
}

// CountChildren returns the number of immediate children of dn.
func (p *ChildProber) CountChildren(ctx context.Context, dn string) (int, error) {
	sess, err := p.client.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	children, err := sess.Search(ctx, directory.SearchRequest{
		BaseDN:     dn,
		Scope:      directory.ScopeOne,
		Filter:     "(objectClass=*)",
		Attributes: []string{"1.1"},
	})
	if err != nil {
		return 0, err
	}

	return len(children), nil
}

func (p *ChildProber) summarize(ctx context.Context, dn string) model.ChildSummary {
	count, err := p.CountChildren(ctx, dn)
	if err != nil {
		slog.Warn("child probe failed", "dn", dn, "error", err)
		return model.ChildSummary{DN: dn}
	}

	return model.ChildSummary{DN: dn, HasChildren: count > 0, ChildCount: count}
}
