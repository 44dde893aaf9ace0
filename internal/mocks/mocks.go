// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/society/agent"
	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/store"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Society() config.SocietyConfig {
	args := m.Called()
	return args.Get(0).(config.SocietyConfig)
}

func (m *MockConfig) Scheduler() config.SchedulerConfig {
	args := m.Called()
	return args.Get(0).(config.SchedulerConfig)
}

func (m *MockConfig) Challenges() config.ChallengesConfig {
	args := m.Called()
	return args.Get(0).(config.ChallengesConfig)
}

func (m *MockConfig) Store() config.StoreConfig {
	args := m.Called()
	return args.Get(0).(config.StoreConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	args := m.Called()
	return args.Get(0).(config.ReportConfig)
}

func (m *MockConfig) Metrics() config.MetricsConfig {
	args := m.Called()
	return args.Get(0).(config.MetricsConfig)
}

// --- Setters ---

// Society Setters
func (m *MockConfig) SetSocietyAgents(n int) {
	m.Called(n)
}

func (m *MockConfig) SetSocietySeed(s uint64) {
	m.Called(s)
}

// Scheduler Setters
func (m *MockConfig) SetSchedulerCyclesPerEpoch(n int) {
	m.Called(n)
}

func (m *MockConfig) SetSchedulerRest(d time.Duration) {
	m.Called(d)
}

func (m *MockConfig) SetSchedulerMaxEpochs(n int) {
	m.Called(n)
}

// Report Setters
func (m *MockConfig) SetReportFormat(f string) {
	m.Called(f)
}

func (m *MockConfig) SetReportOutput(o string) {
	m.Called(o)
}

func (m *MockConfig) SetMetricsAddr(addr string) {
	m.Called(addr)
}

// -- Cognition Mock --

// MockCognition mocks the agent.Cognition interface.
type MockCognition struct {
	mock.Mock
}

func (m *MockCognition) Solve(state agent.State, ch models.Challenge) (agent.Outcome, error) {
	args := m.Called(state, ch)
	return args.Get(0).(agent.Outcome), args.Error(1)
}

func (m *MockCognition) Learn(rec models.SolutionRecord) {
	m.Called(rec)
}

func (m *MockCognition) Danger() float64 {
	return m.Called().Get(0).(float64)
}

func (m *MockCognition) TopValues(n int) []string {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockCognition) MetaphysicalUnderstanding() float64 {
	return m.Called().Get(0).(float64)
}

func (m *MockCognition) Safeguards() int {
	return m.Called().Int(0)
}

func (m *MockCognition) EngageSafeguard() {
	m.Called()
}

// -- Challenge Generator Mock --

// MockGenerator mocks the challenge.Generator interface.
type MockGenerator struct {
	mock.Mock
}

// Next honors cancellation before consulting the configured expectations.
func (m *MockGenerator) Next(ctx context.Context) (models.Challenge, error) {
	select {
	case <-ctx.Done():
		return models.Challenge{}, ctx.Err()
	default:
	}
	args := m.Called(ctx)
	return args.Get(0).(models.Challenge), args.Error(1)
}

// -- Report Sink Mock --

// MockReportSink mocks the models.ReportSink interface.
type MockReportSink struct {
	mock.Mock
}

func (m *MockReportSink) ReportCycle(ctx context.Context, rep models.CycleReport) error {
	return m.Called(ctx, rep).Error(0)
}

func (m *MockReportSink) ReportEpoch(ctx context.Context, rep models.EpochReport) error {
	return m.Called(ctx, rep).Error(0)
}

func (m *MockReportSink) ReportFinal(ctx context.Context, rep models.FinalReport) error {
	return m.Called(ctx, rep).Error(0)
}

// -- Store Mock --

// MockStore mocks the store.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveCycle(ctx context.Context, rep models.CycleReport) error {
	return m.Called(ctx, rep).Error(0)
}

func (m *MockStore) SaveEpoch(ctx context.Context, rep models.EpochReport) error {
	return m.Called(ctx, rep).Error(0)
}

func (m *MockStore) SaveFinal(ctx context.Context, rep models.FinalReport) error {
	return m.Called(ctx, rep).Error(0)
}

func (m *MockStore) Runs(ctx context.Context, limit int) ([]store.RunInfo, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.RunInfo), args.Error(1)
}

func (m *MockStore) Cycles(ctx context.Context, runID string, limit int) ([]models.CycleReport, error) {
	args := m.Called(ctx, runID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CycleReport), args.Error(1)
}

func (m *MockStore) Final(ctx context.Context, runID string) (models.FinalReport, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(models.FinalReport), args.Error(1)
}

func (m *MockStore) Close() {
	m.Called()
}
