package coordinator

import (
	"context"
	"testing"

	"github.com/kmansel/mobilelink/internal/mobilelink"
)

type stubAPI struct {
	logins       int
	cookieLogins int
	discoveries  int
	loginErr     error
	discoverErr  error
	// discoverErrOnce fails the next discovery only, then clears.
	discoverErrOnce error
	tanks           map[int64]mobilelink.PropaneTank
}

func (s *stubAPI) Login(_ context.Context, _, _ string) error {
	s.logins++
	return s.loginErr
}

func (s *stubAPI) LoginWithCookie(_ context.Context, _ string) error {
	s.cookieLogins++
	return s.loginErr
}

func (s *stubAPI) DiscoverTanks(_ context.Context) (map[int64]mobilelink.PropaneTank, error) {
	s.discoveries++
	if s.discoverErrOnce != nil {
		err := s.discoverErrOnce
		s.discoverErrOnce = nil
		return nil, err
	}
	if s.discoverErr != nil {
		return nil, s.discoverErr
	}
	return s.tanks, nil
}

type recordingPublisher struct {
	calls    int
	lastSeen map[int64]mobilelink.PropaneTank
}

func (p *recordingPublisher) PublishTanks(_ context.Context, _ string, tanks map[int64]mobilelink.PropaneTank) error {
	p.calls++
	p.lastSeen = tanks
	return nil
}

func fixtureTanks() map[int64]mobilelink.PropaneTank {
	level := 42.5
	return map[int64]mobilelink.PropaneTank{
		7: {ApparatusID: 7, Name: "Main Tank", FuelLevelPercent: &level},
		9: {ApparatusID: 9, Name: "Barn Tank"},
	}
}

func TestRefreshLogsInOnceAndPublishes(t *testing.T) {
	api := &stubAPI{tanks: fixtureTanks()}
	publisher := &recordingPublisher{}
	c := New("user@example.com", api, Credentials{Email: "user@example.com", Password: "pw"}, nil, 0, nil, publisher)

	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if api.logins != 1 {
		t.Fatalf("expected 1 login across refreshes, got %d", api.logins)
	}
	if api.discoveries != 2 {
		t.Fatalf("expected 2 discoveries, got %d", api.discoveries)
	}
	if publisher.calls != 2 {
		t.Fatalf("expected 2 publishes, got %d", publisher.calls)
	}
	if len(c.Tanks()) != 2 {
		t.Fatalf("unexpected tank snapshot: %v", c.Tanks())
	}
}

func TestRefreshReauthenticatesAfterAuthError(t *testing.T) {
	api := &stubAPI{
		tanks:           fixtureTanks(),
		discoverErrOnce: &mobilelink.AuthError{Code: mobilelink.CodeNotAuthenticated, Step: mobilelink.StepAccountCall},
	}
	c := New("user@example.com", api, Credentials{Email: "user@example.com", Password: "pw"}, nil, 0, nil)

	ctx := context.Background()
	if err := c.Refresh(ctx); err == nil {
		t.Fatalf("expected auth error from first refresh")
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("second refresh should recover: %v", err)
	}
	if api.logins != 2 {
		t.Fatalf("expected re-login after auth error, got %d logins", api.logins)
	}
}

func TestRefreshKeepsSessionAfterAPIError(t *testing.T) {
	api := &stubAPI{
		tanks:           fixtureTanks(),
		discoverErrOnce: &mobilelink.APIError{Status: 502, Body: "bad gateway"},
	}
	c := New("user@example.com", api, Credentials{Email: "user@example.com", Password: "pw"}, nil, 0, nil)

	ctx := context.Background()
	if err := c.Refresh(ctx); err == nil {
		t.Fatalf("expected api error from first refresh")
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if api.logins != 1 {
		t.Fatalf("api errors must not invalidate the session, got %d logins", api.logins)
	}
}

func TestRefreshFiltersSelectedTanks(t *testing.T) {
	api := &stubAPI{tanks: fixtureTanks()}
	publisher := &recordingPublisher{}
	c := New("user@example.com", api, Credentials{Email: "user@example.com", Password: "pw"}, []int64{9}, 0, nil, publisher)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	tanks := c.Tanks()
	if len(tanks) != 1 {
		t.Fatalf("expected selection filter to keep 1 tank, got %d", len(tanks))
	}
	if _, ok := tanks[9]; !ok {
		t.Fatalf("expected tank 9, got %v", tanks)
	}
	if len(publisher.lastSeen) != 1 {
		t.Fatalf("publisher should see filtered set, got %v", publisher.lastSeen)
	}
}

func TestCookieModeUsesCookieLogin(t *testing.T) {
	api := &stubAPI{tanks: fixtureTanks()}
	c := New("user@example.com", api, Credentials{CookieHeader: "ml=abc"}, nil, 0, nil)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if api.cookieLogins != 1 || api.logins != 0 {
		t.Fatalf("expected cookie login, got logins=%d cookieLogins=%d", api.logins, api.cookieLogins)
	}
}
