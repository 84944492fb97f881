package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"

	"github.com/zulandar/notary/internal/docstore"
)

// --- Mock document store ---

type searchCall struct {
	query string
	kind  string
}

type queryCall struct {
	databaseID    string
	titleProperty string
	titleContains string
}

type appendCall struct {
	recordID string
	blocks   []docstore.Block
}

type mockStore struct {
	mu sync.Mutex

	searchResults []docstore.SearchResult
	searchErr     error
	searchCalls   []searchCall

	schemas     map[string]docstore.Schema
	schemaErr   error
	schemaCalls int

	queryResults []docstore.Record
	queryErr     error
	queryCalls   []queryCall

	createdRecord docstore.CreatedRecord
	createErr     error
	createCalls   []docstore.CreateRecordRequest

	appendErr   error
	appendCalls []appendCall
}

func newMockStore() *mockStore {
	return &mockStore{
		schemas:       make(map[string]docstore.Schema),
		createdRecord: docstore.CreatedRecord{ID: "rec-new", URL: "https://docs/rec-new"},
	}
}

func (m *mockStore) Search(ctx context.Context, query, kind string) ([]docstore.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls = append(m.searchCalls, searchCall{query: query, kind: kind})
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockStore) GetSchema(ctx context.Context, databaseID string) (docstore.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaCalls++
	if m.schemaErr != nil {
		return docstore.Schema{}, m.schemaErr
	}
	schema, ok := m.schemas[databaseID]
	if !ok {
		return docstore.Schema{}, fmt.Errorf("mock: no schema for %s", databaseID)
	}
	return schema, nil
}

func (m *mockStore) QueryRecords(ctx context.Context, databaseID, titleProperty, titleContains string) ([]docstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls = append(m.queryCalls, queryCall{databaseID, titleProperty, titleContains})
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryResults, nil
}

func (m *mockStore) CreateRecord(ctx context.Context, req docstore.CreateRecordRequest) (docstore.CreatedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return docstore.CreatedRecord{}, m.createErr
	}
	m.createCalls = append(m.createCalls, req)
	return m.createdRecord, nil
}

func (m *mockStore) AppendBlocks(ctx context.Context, recordID string, blocks []docstore.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls = append(m.appendCalls, appendCall{recordID: recordID, blocks: blocks})
	return m.appendErr
}

func (m *mockStore) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createCalls)
}

func (m *mockStore) lastCreate() docstore.CreateRecordRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls[len(m.createCalls)-1]
}

func (m *mockStore) appendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appendCalls)
}

func (m *mockStore) lastAppend() appendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls[len(m.appendCalls)-1]
}

// --- Mock chat platform ---

type openedView struct {
	triggerID string
	view      slack.ModalViewRequest
}

type updatedView struct {
	viewID string
	view   slack.ModalViewRequest
}

type permalinkCall struct {
	channelID string
	messageTS string
}

type mockChat struct {
	mu sync.Mutex

	opened  []openedView
	openErr error

	updated   []updatedView
	updateErr error

	permalink      string
	permalinkErr   error
	permalinkCalls []permalinkCall
}

func newMockChat() *mockChat {
	return &mockChat{permalink: "https://chat.example/archives/C1/p100"}
}

func (m *mockChat) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = append(m.opened, openedView{triggerID: triggerID, view: view})
	return nil
}

func (m *mockChat) UpdateView(ctx context.Context, viewID string, view slack.ModalViewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, updatedView{viewID: viewID, view: view})
	return nil
}

func (m *mockChat) Permalink(ctx context.Context, channelID, messageTS string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permalinkCalls = append(m.permalinkCalls, permalinkCall{channelID: channelID, messageTS: messageTS})
	if m.permalinkErr != nil {
		return "", m.permalinkErr
	}
	return m.permalink, nil
}

func (m *mockChat) openedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opened)
}

func (m *mockChat) lastOpened() openedView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened[len(m.opened)-1]
}

func (m *mockChat) lastUpdated() updatedView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updated[len(m.updated)-1]
}
