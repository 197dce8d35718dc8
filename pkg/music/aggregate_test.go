package music

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeSource struct {
	name   string
	host   string
	tracks []Track
	err    error
	calls  []string
}

func (f *fakeSource) Name() string          { return f.name }
func (f *fakeSource) Match(u *url.URL) bool { return HostMatches(u.Host, f.host) }
func (f *fakeSource) Tracks(_ context.Context, ref string) ([]Track, error) {
	f.calls = append(f.calls, ref)
	return f.tracks, f.err
}

func newTrack(u string) Track { return Track{Title: u, URL: u} }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// TestBuilderMerge ensures results from multiple sources are combined in order
// and duplicates removed.
func TestBuilderMerge(t *testing.T) {
	a := &fakeSource{name: "a", host: "a.test", tracks: []Track{newTrack("http://x/1"), newTrack("http://x/2")}}
	b := &fakeSource{name: "b", host: "b.test", tracks: []Track{newTrack("http://X/2#t=3"), newTrack("http://x/3")}}
	bl := &Builder{Registry: NewRegistry(a, b), Log: quietLogger()}
	pl, err := bl.Build(context.Background(), "mix", []string{"https://a.test/p", "https://b.test/q"}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"http://x/1", "http://x/2", "http://x/3"}
	if len(pl.Tracks) != len(want) {
		t.Fatalf("expected %d tracks got %+v", len(want), pl.Tracks)
	}
	for i, w := range want {
		if pl.Tracks[i].URL != w {
			t.Errorf("track %d = %s want %s", i, pl.Tracks[i].URL, w)
		}
	}
	if pl.Tracks[0].Source != "a" || pl.Tracks[2].Source != "b" {
		t.Errorf("source not stamped: %+v", pl.Tracks)
	}
	if pl.Name != "mix" || len(pl.Sources) != 2 {
		t.Errorf("unexpected playlist metadata %+v", pl)
	}
}

func TestBuilderKeepDuplicatesAndLimit(t *testing.T) {
	a := &fakeSource{name: "a", host: "a.test", tracks: []Track{newTrack("http://x/1"), newTrack("http://x/1"), {Title: "no url"}}}
	bl := &Builder{Registry: NewRegistry(a), Log: quietLogger()}
	pl, err := bl.Build(context.Background(), "", []string{"https://a.test/1"}, Options{KeepDuplicates: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(pl.Tracks) != 2 {
		t.Fatalf("expected duplicates kept and url-less track dropped, got %+v", pl.Tracks)
	}
	pl, err = bl.Build(context.Background(), "", []string{"https://a.test/1"}, Options{KeepDuplicates: true, Limit: 1})
	if err != nil || len(pl.Tracks) != 1 {
		t.Fatalf("limit not applied: %v %+v", err, pl)
	}
}

func TestBuilderErrors(t *testing.T) {
	boom := errors.New("boom")
	good := &fakeSource{name: "good", host: "good.test", tracks: []Track{newTrack("http://x/1")}}
	bad := &fakeSource{name: "bad", host: "bad.test", err: boom}
	bl := &Builder{Registry: NewRegistry(good, bad), Log: quietLogger()}
	ctx := context.Background()

	if _, err := bl.Build(ctx, "", nil, Options{}); !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources got %v", err)
	}
	if _, err := bl.Build(ctx, "", []string{"https://bad.test/1", "https://good.test/1"}, Options{}); !errors.Is(err, boom) {
		t.Errorf("expected boom got %v", err)
	}
	if len(good.calls) != 0 {
		t.Errorf("build should abort on the first failure, good called %v", good.calls)
	}
	pl, err := bl.Build(ctx, "", []string{"https://bad.test/1", "https://good.test/1"}, Options{SkipErrors: true})
	if err != nil || len(pl.Tracks) != 1 {
		t.Errorf("expected partial success got %v %+v", err, pl)
	}
	if _, err := bl.Build(ctx, "", []string{"https://bad.test/1", "ftp://nowhere/x"}, Options{SkipErrors: true}); !errors.Is(err, boom) {
		t.Errorf("expected first error when all fail, got %v", err)
	}
	empty := &fakeSource{name: "empty", host: "empty.test"}
	bl = &Builder{Registry: NewRegistry(empty), Log: quietLogger()}
	if _, err := bl.Build(ctx, "", []string{"https://empty.test/"}, Options{}); !errors.Is(err, ErrNoTracks) {
		t.Errorf("expected ErrNoTracks got %v", err)
	}
}

func TestBuilderCancelled(t *testing.T) {
	a := &fakeSource{name: "a", host: "a.test", tracks: []Track{newTrack("http://x/1")}}
	bl := &Builder{Registry: NewRegistry(a), Log: quietLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bl.Build(ctx, "", []string{"https://a.test/"}, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}

// cancelSource cancels the build context while it is being fetched.
type cancelSource struct {
	fakeSource
	cancel context.CancelFunc
}

func (c *cancelSource) Tracks(ctx context.Context, ref string) ([]Track, error) {
	c.cancel()
	return nil, ctx.Err()
}

func TestBuilderCancelledMidBuildWithSkipErrors(t *testing.T) {
	a := &fakeSource{name: "a", host: "a.test", tracks: []Track{newTrack("http://x/1")}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &cancelSource{fakeSource: fakeSource{name: "c", host: "c.test"}, cancel: cancel}
	bl := &Builder{Registry: NewRegistry(a, c), Log: quietLogger()}
	pl, err := bl.Build(ctx, "", []string{"https://a.test/", "https://c.test/"}, Options{SkipErrors: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v (playlist %+v)", err, pl)
	}
	if pl != nil {
		t.Errorf("expected no playlist got %+v", pl)
	}
}

func TestBuilderDeadlineIsNotSkipped(t *testing.T) {
	a := &fakeSource{name: "a", host: "a.test", tracks: []Track{newTrack("http://x/1")}}
	slow := &fakeSource{name: "slow", host: "slow.test", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded)}
	bl := &Builder{Registry: NewRegistry(a, slow), Log: quietLogger()}
	_, err := bl.Build(context.Background(), "", []string{"https://slow.test/", "https://a.test/"}, Options{SkipErrors: true})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error got %v", err)
	}
	if len(a.calls) != 0 {
		t.Errorf("build should stop after a timeout, a called %v", a.calls)
	}
}

func TestBuilderStampsCreated(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := &fakeSource{name: "a", host: "a.test", tracks: []Track{{URL: "http://x/1", Duration: time.Minute}, {URL: "http://x/2", Duration: 30 * time.Second}}}
	bl := &Builder{Registry: NewRegistry(a), Log: quietLogger(), Now: func() time.Time { return at }}
	pl, err := bl.Build(context.Background(), "p", []string{"https://a.test/"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !pl.Created.Equal(at) {
		t.Errorf("created = %v", pl.Created)
	}
	if pl.Duration() != 90*time.Second {
		t.Errorf("duration = %v", pl.Duration())
	}
}
