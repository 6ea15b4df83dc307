package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ragchat/features/document"
	"ragchat/features/job"
	"ragchat/internal/worker/events"
)

type MockFetcher struct{ mock.Mock }

func (m *MockFetcher) Get(ctx context.Context, id int64) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

type MockProcessor struct{ mock.Mock }

func (m *MockProcessor) Process(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}
func (m *MockJobRepo) List(ctx context.Context) ([]job.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}
func (m *MockJobRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}
func (m *MockJobRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func taskMessage(t *testing.T, task events.IngestTask) *nsq.Message {
	body, err := json.Marshal(task)
	require.NoError(t, err)
	return nsq.NewMessage(nsq.MessageID{}, body)
}

func TestHandleMessage_Success(t *testing.T) {
	fetcher := new(MockFetcher)
	processor := new(MockProcessor)
	jobs := new(MockJobRepo)
	consumer := NewIngestConsumer(fetcher, processor, jobs)

	doc := &document.Document{ID: 7, Filename: "a.txt", Content: "text"}
	fetcher.On("Get", mock.Anything, int64(7)).Return(doc, nil)
	processor.On("Process", mock.Anything, doc).Return(nil)

	err := consumer.HandleMessage(taskMessage(t, events.IngestTask{DocumentID: 7, CorrelationID: "corr-1"}))
	require.NoError(t, err)

	fetcher.AssertExpectations(t)
	processor.AssertExpectations(t)
	jobs.AssertNotCalled(t, "Save")
}

func TestHandleMessage_InvalidJSONDropped(t *testing.T) {
	consumer := NewIngestConsumer(new(MockFetcher), new(MockProcessor), new(MockJobRepo))

	msg := nsq.NewMessage(nsq.MessageID{}, []byte("{not json"))
	assert.NoError(t, consumer.HandleMessage(msg), "poison pill must not be requeued")
}

func TestHandleMessage_EmptyBodyDropped(t *testing.T) {
	consumer := NewIngestConsumer(new(MockFetcher), new(MockProcessor), new(MockJobRepo))

	msg := nsq.NewMessage(nsq.MessageID{}, nil)
	assert.NoError(t, consumer.HandleMessage(msg))
}

func TestHandleMessage_MissingDocumentIDDropped(t *testing.T) {
	fetcher := new(MockFetcher)
	consumer := NewIngestConsumer(fetcher, new(MockProcessor), new(MockJobRepo))

	err := consumer.HandleMessage(taskMessage(t, events.IngestTask{}))
	assert.NoError(t, err)
	fetcher.AssertNotCalled(t, "Get")
}

func TestHandleMessage_DocumentGoneDropped(t *testing.T) {
	fetcher := new(MockFetcher)
	processor := new(MockProcessor)
	consumer := NewIngestConsumer(fetcher, processor, new(MockJobRepo))

	fetcher.On("Get", mock.Anything, int64(7)).Return(nil, document.ErrNotFound)

	err := consumer.HandleMessage(taskMessage(t, events.IngestTask{DocumentID: 7}))
	assert.NoError(t, err)
	processor.AssertNotCalled(t, "Process")
}

func TestHandleMessage_FetchErrorRequeued(t *testing.T) {
	fetcher := new(MockFetcher)
	consumer := NewIngestConsumer(fetcher, new(MockProcessor), new(MockJobRepo))

	fetcher.On("Get", mock.Anything, int64(7)).Return(nil, errors.New("db down"))

	err := consumer.HandleMessage(taskMessage(t, events.IngestTask{DocumentID: 7}))
	assert.Error(t, err, "transient fetch failures must be requeued")
}

func TestHandleMessage_ProcessFailureSavesJob(t *testing.T) {
	fetcher := new(MockFetcher)
	processor := new(MockProcessor)
	jobs := new(MockJobRepo)
	consumer := NewIngestConsumer(fetcher, processor, jobs)

	doc := &document.Document{ID: 7, Filename: "a.txt", Content: "the extracted text"}
	fetcher.On("Get", mock.Anything, int64(7)).Return(doc, nil)
	processor.On("Process", mock.Anything, doc).Return(errors.New("embedding exhausted"))
	jobs.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		var payload job.RetryPayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return false
		}
		return j.Filename == "a.txt" &&
			j.Error == "embedding exhausted" &&
			payload.Content == "the extracted text"
	})).Return(nil)

	err := consumer.HandleMessage(taskMessage(t, events.IngestTask{DocumentID: 7}))
	assert.NoError(t, err, "failure is captured as a job, message must not requeue")
	jobs.AssertExpectations(t)
}
