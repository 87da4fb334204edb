package factory

import (
	"time"

	"github.com/mcoot/memorygrid/internal/dependencies/mocks"
	"github.com/mcoot/memorygrid/internal/services/auth"
	"github.com/mcoot/memorygrid/internal/storage/memory"
	"github.com/mcoot/memorygrid/internal/testutil"
	"github.com/mcoot/memorygrid/internal/transport/ws"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked clock and
// randomness over memory storage. Queue session codes on MockRandom before
// creating sessions.
func NewTestApp(wsCfg ws.Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, auth.DefaultConfig(), wsCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
