package server

import (
	"context"
	"time"

	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/snapshot"
)

func (s *Server) saveSnapshot(ctx context.Context, a args) (any, error) {
	name, err := a.RequireString("name")
	if err != nil {
		return nil, err
	}
	t, err := s.d.Build(ctx)
	if err != nil {
		return nil, err
	}
	return done(s.snaps.Save(name, t))
}

// LoadedSnapshot is the result of load_snapshot.
type LoadedSnapshot struct {
	Name      string            `yaml:"name" json:"name"`
	CreatedAt time.Time         `yaml:"created_at" json:"created_at"`
	Tree      output.TreeResult `yaml:"tree" json:"tree"`
}

func (s *Server) loadSnapshot(_ context.Context, a args) (any, error) {
	name, err := a.RequireString("name")
	if err != nil {
		return nil, err
	}
	snap, err := s.snaps.Load(name)
	if err != nil {
		return nil, err
	}
	tree := output.NewTreeResult(s.app, snap.Tree)
	tree.TS = snap.CreatedAt.Unix()
	return LoadedSnapshot{Name: snap.Name, CreatedAt: snap.CreatedAt, Tree: tree}, nil
}

func (s *Server) diffSnapshots(_ context.Context, a args) (any, error) {
	from, err := a.RequireString("a")
	if err != nil {
		return nil, err
	}
	to, err := a.RequireString("b")
	if err != nil {
		return nil, err
	}
	m, err := snapshot.ParseMatch(a.op, a.String("match", ""))
	if err != nil {
		return nil, err
	}
	return done(s.snaps.DiffWith(from, to, m))
}

func (s *Server) diffCurrent(ctx context.Context, a args) (any, error) {
	name, err := a.RequireString("name")
	if err != nil {
		return nil, err
	}
	m, err := snapshot.ParseMatch(a.op, a.String("match", ""))
	if err != nil {
		return nil, err
	}
	return done(s.snaps.DiffCurrentWith(ctx, name, s.d, m))
}

// SnapshotList is the result of list_snapshots.
type SnapshotList struct {
	Count     int             `yaml:"count" json:"count"`
	Snapshots []snapshot.Info `yaml:"snapshots" json:"snapshots"`
}

func (s *Server) listSnapshots(_ context.Context, _ args) (any, error) {
	infos := s.snaps.List()
	if infos == nil {
		infos = []snapshot.Info{}
	}
	return SnapshotList{Count: len(infos), Snapshots: infos}, nil
}

func (s *Server) deleteSnapshot(_ context.Context, a args) (any, error) {
	name, err := a.RequireString("name")
	if err != nil {
		return nil, err
	}
	return ack(s.snaps.Delete(name))
}
