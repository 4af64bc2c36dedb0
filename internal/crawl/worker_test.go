package crawl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Kronixion/matval/internal/ingest"
	"github.com/Kronixion/matval/internal/listing"
	"github.com/Kronixion/matval/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, item source.Item) (ingest.Outcome, error) {
	args := m.Called(ctx, item)
	return args.Get(0).(ingest.Outcome), args.Error(1)
}

func sourceID(id string) any {
	return mock.MatchedBy(func(item source.Item) bool {
		f := item.Fields()
		return f.SourceID != nil && *f.SourceID == id
	})
}

func TestWorkerCountsOutcomes(t *testing.T) {
	p := new(mockProcessor)
	p.On("Process", mock.Anything, sourceID("1")).Return(ingest.Outcome{
		Status: ingest.StatusAck,
		Result: listing.Result{Outcome: listing.OutcomeCreated},
	}, nil).Once()
	p.On("Process", mock.Anything, sourceID("2")).Return(ingest.Outcome{
		Status: ingest.StatusAck,
		Result: listing.Result{Outcome: listing.OutcomeUpdated, HistoryRecorded: true},
	}, nil).Once()
	p.On("Process", mock.Anything, sourceID("3")).Return(ingest.Outcome{
		Status: ingest.StatusReject,
		Reason: ingest.ReasonNormalization,
	}, nil).Once()

	input := strings.Join([]string{
		`{"product_id": "1", "name": "a"}`,
		``,
		`{"product_id": "2", "name": "b"}`,
		`{"product_id": `,
		`{"product_id": "3", "name": "c"}`,
	}, "\n")

	var report Report
	err := NewWorker("coop", p, nil, nil).Run(context.Background(), strings.NewReader(input), &report)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Lines)
	assert.Equal(t, 2, report.Acked)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.DecodeErrors)
	assert.Equal(t, 1, report.History)
	assert.Equal(t, 1, report.Outcomes[listing.OutcomeCreated])
	assert.Equal(t, 1, report.Rejections[ingest.ReasonNormalization])
	p.AssertExpectations(t)
}

func TestWorkerStopsOnFatalError(t *testing.T) {
	p := new(mockProcessor)
	p.On("Process", mock.Anything, sourceID("1")).
		Return(ingest.Outcome{Status: ingest.StatusReject, Reason: ingest.ReasonStorage}, ingest.ErrBackendUnavailable).Once()

	input := `{"product_id": "1"}` + "\n" + `{"product_id": "2"}`
	var report Report
	err := NewWorker("coop", p, nil, nil).Run(context.Background(), strings.NewReader(input), &report)
	require.ErrorIs(t, err, ingest.ErrBackendUnavailable)

	assert.Equal(t, 1, report.Lines)
	p.AssertExpectations(t)
	p.AssertNotCalled(t, "Process", mock.Anything, sourceID("2"))
}

func TestWorkerStopsBetweenItemsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := new(mockProcessor)
	p.On("Process", mock.Anything, sourceID("1")).
		Run(func(mock.Arguments) { cancel() }).
		Return(ingest.Outcome{Status: ingest.StatusAck}, nil).Once()

	input := `{"product_id": "1"}` + "\n" + `{"product_id": "2"}`
	var report Report
	err := NewWorker("coop", p, nil, nil).Run(ctx, strings.NewReader(input), &report)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, report.Acked)
	p.AssertExpectations(t)
}
