package netsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer("test-universe", NoopLogger(), nil, true)
}

func newTestServerNoReconciliation(t *testing.T) *Server {
	t.Helper()
	return NewServer("test-universe", NoopLogger(), nil, false)
}

// waitForMessage polls sink's buffered channel until a message is
// available or timeout elapses.
func waitForMessage(t *testing.T, sink *ChanSink, timeout time.Duration) ProtocolMessage {
	t.Helper()
	select {
	case msg := <-sink.Messages():
		return msg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, sink *ChanSink, within time.Duration) {
	t.Helper()
	select {
	case msg := <-sink.Messages():
		t.Fatalf("expected no message, got %#v", msg)
	case <-time.After(within):
	}
}

const (
	testDna    DnaAddress = "dna1"
	alice      AgentID    = "alice"
	bob        AgentID    = "bob"
	carol      AgentID    = "carol"
)

func registerAgent(s *Server, dna DnaAddress, agent AgentID, buffer int) *ChanSink {
	sink := NewChanSink(buffer)
	s.Register(dna, agent, sink)
	return sink
}

// =============================================================================
// CLOCK IN / OUT
// =============================================================================

func TestClockInOut(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, 0, s.ClientCount())

	s.ClockIn()
	s.ClockIn()
	assert.Equal(t, 2, s.ClientCount())

	s.ClockOut()
	assert.Equal(t, 1, s.ClientCount())

	s.ClockOut()
	assert.Equal(t, 0, s.ClientCount())
}

func TestClockOutWithoutClockInPanics(t *testing.T) {
	s := newTestServer(t)
	assert.PanicsWithValue(t, &AlreadyClockedOutError{}, func() {
		s.ClockOut()
	})
}

func TestClockOutClearsRoutingTables(t *testing.T) {
	s := newTestServer(t)
	s.ClockIn()
	registerAgent(s, testDna, alice, 4)
	require.True(t, s.IsTracked(Bucket(testDna, alice)) == false)

	s.ClockOut()

	// Re-clock-in and confirm alice must register again: a fresh sink is
	// required to receive anything.
	s.ClockIn()
	var routeErr *NoRouteError
	require.ErrorAs(t, s.Serve(SendMessageMsg{MessageData{DnaAddress: testDna, ToAgentID: alice, FromAgentID: bob}}), &routeErr)
	bobSink := registerAgent(s, testDna, bob, 4)
	err := s.Serve(SendMessageMsg{MessageData{DnaAddress: testDna, ToAgentID: bob, FromAgentID: alice, Content: []byte("hi")}})
	require.NoError(t, err)
	msg := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindHandleSendMessage, msg.Kind())
}

// =============================================================================
// REGISTRATION
// =============================================================================

func TestRegisterDedupesPerDnaFanout(t *testing.T) {
	s := newTestServer(t)
	sink1 := registerAgent(s, testDna, alice, 4)
	sink2 := registerAgent(s, testDna, alice, 8)

	err := s.Serve(TrackDnaMsg{DnaAddress: testDna, AgentID: alice})
	require.NoError(t, err)

	// Only the second, surviving registration should receive the
	// PeerConnected multicast; the first sink must see nothing.
	msg := waitForMessage(t, sink2, time.Second)
	assert.Equal(t, KindPeerConnected, msg.Kind())
	assertNoMessage(t, sink1, 50*time.Millisecond)
}

// =============================================================================
// DIRECT MESSAGING
// =============================================================================

func TestSendMessageRoutesToRecipient(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)
	registerAgent(s, testDna, alice, 4)

	err := s.Serve(SendMessageMsg{MessageData{
		DnaAddress: testDna, ToAgentID: bob, FromAgentID: alice, Content: []byte("hello"),
	}})
	require.NoError(t, err)

	msg := waitForMessage(t, bobSink, time.Second)
	hs, ok := msg.(HandleSendMessageMsg)
	require.True(t, ok)
	assert.Equal(t, alice, hs.FromAgentID)
	assert.Equal(t, []byte("hello"), hs.Content)
}

func TestSendMessageToUnknownAgentReturnsNoRouteError(t *testing.T) {
	s := newTestServer(t)
	err := s.Serve(SendMessageMsg{MessageData{DnaAddress: testDna, ToAgentID: bob, FromAgentID: alice}})
	var routeErr *NoRouteError
	require.ErrorAs(t, err, &routeErr)
}

func TestHandleSendMessageResultRoutesBack(t *testing.T) {
	s := newTestServer(t)
	aliceSink := registerAgent(s, testDna, alice, 4)
	registerAgent(s, testDna, bob, 4)

	err := s.Serve(HandleSendMessageResultMsg{MessageData{
		DnaAddress: testDna, ToAgentID: alice, FromAgentID: bob, Content: []byte("reply"),
	}})
	require.NoError(t, err)

	msg := waitForMessage(t, aliceSink, time.Second)
	assert.Equal(t, KindSendMessageResult, msg.Kind())
}

// =============================================================================
// TRACK DNA / RECONCILIATION HANDSHAKE
// =============================================================================

func TestTrackDnaTriggersPeerConnectedAndReconciliation(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 8)
	aliceSink := registerAgent(s, testDna, alice, 8)

	err := s.Serve(TrackDnaMsg{DnaAddress: testDna, AgentID: alice})
	require.NoError(t, err)

	// Both alice and bob get PeerConnected (alice's own fanout entry
	// exists since Register ran before TrackDna).
	peerMsg1 := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindPeerConnected, peerMsg1.Kind())

	peerMsg2 := waitForMessage(t, aliceSink, time.Second)
	assert.Equal(t, KindPeerConnected, peerMsg2.Kind())

	// alice, as the newly tracked agent, receives the four reconciliation
	// requests in order.
	wantKinds := []MessageKind{
		KindHandleGetPublishingEntryList,
		KindHandleGetHoldingEntryList,
		KindHandleGetPublishingMetaList,
		KindHandleGetHoldingMetaList,
	}
	for _, want := range wantKinds {
		msg := waitForMessage(t, aliceSink, time.Second)
		assert.Equal(t, want, msg.Kind())
	}
}

func TestTrackDnaTwiceIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	aliceSink := registerAgent(s, testDna, alice, 8)

	require.NoError(t, s.Serve(TrackDnaMsg{DnaAddress: testDna, AgentID: alice}))
	for i := 0; i < 5; i++ {
		waitForMessage(t, aliceSink, time.Second)
	}

	require.NoError(t, s.Serve(TrackDnaMsg{DnaAddress: testDna, AgentID: alice}))
	assertNoMessage(t, aliceSink, 50*time.Millisecond)
}

func TestTrackDnaWithReconciliationDisabledSkipsListRequests(t *testing.T) {
	s := newTestServerNoReconciliation(t)
	bobSink := registerAgent(s, testDna, bob, 8)
	aliceSink := registerAgent(s, testDna, alice, 8)

	err := s.Serve(TrackDnaMsg{DnaAddress: testDna, AgentID: alice})
	require.NoError(t, err)

	peerMsg1 := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindPeerConnected, peerMsg1.Kind())

	peerMsg2 := waitForMessage(t, aliceSink, time.Second)
	assert.Equal(t, KindPeerConnected, peerMsg2.Kind())

	// No GetPublishing/GetHolding reconciliation requests follow.
	assertNoMessage(t, aliceSink, 50*time.Millisecond)
	assert.True(t, s.IsTracked(Bucket(testDna, alice)))
}

// =============================================================================
// PUBLISH / FETCH ENTRY
// =============================================================================

func TestPublishEntryFansOutToAllPeers(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)
	carolSink := registerAgent(s, testDna, carol, 4)
	registerAgent(s, testDna, alice, 4)

	err := s.Serve(PublishEntryMsg{EntryData{
		DnaAddress: testDna, ProviderAgentID: alice, EntryAddress: "addr1", EntryContent: []byte("data"),
	}})
	require.NoError(t, err)

	for _, sink := range []*ChanSink{bobSink, carolSink} {
		msg := waitForMessage(t, sink, time.Second)
		assert.Equal(t, KindHandleStoreEntry, msg.Kind())
	}

	bucket := Bucket(testDna, alice)
	assert.Contains(t, s.PublishedEntries(bucket), EntryAddress("addr1"))
}

func TestFetchEntryWithNoPeersFails(t *testing.T) {
	s := newTestServer(t)
	s.ClockIn()
	aliceSink := registerAgent(s, testDna, alice, 4)
	// The last clock-out empties the routing tables, leaving no peer on
	// the DNA; the fabricated FailureResult for alice then has no route
	// either, so Serve reports it as a NoRouteError.
	s.ClockOut()
	s.ClockIn()

	err := s.Serve(FetchEntryMsg{FetchEntryData{
		DnaAddress: testDna, RequesterAgentID: alice, RequestID: "req_x", EntryAddress: "addrZ",
	}})
	var routeErr *NoRouteError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, Bucket(testDna, alice), routeErr.Bucket)
	assertNoMessage(t, aliceSink, 50*time.Millisecond)
}

func TestFetchEntryForwardsToFirstPeer(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)
	registerAgent(s, testDna, alice, 4)

	err := s.Serve(FetchEntryMsg{FetchEntryData{
		DnaAddress: testDna, RequesterAgentID: alice, RequestID: "req_x", EntryAddress: "addr1",
	}})
	require.NoError(t, err)

	msg := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindHandleFetchEntry, msg.Kind())
}

func TestFetchEntryResultForExternalRequestIsRelayed(t *testing.T) {
	s := newTestServer(t)
	aliceSink := registerAgent(s, testDna, alice, 4)
	registerAgent(s, testDna, bob, 4)

	err := s.Serve(HandleFetchEntryResultMsg{FetchEntryResultData{
		DnaAddress: testDna, RequesterAgentID: alice, ProviderAgentID: bob,
		RequestID: "req_external", EntryAddress: "addr1", EntryContent: []byte("x"),
	}})
	require.NoError(t, err)

	msg := waitForMessage(t, aliceSink, time.Second)
	assert.Equal(t, KindFetchEntryResult, msg.Kind())
}

func TestFetchEntryResultForInternalRequestIsTreatedAsPublish(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)
	registerAgent(s, testDna, alice, 4)

	id := s.CreateRequest(Bucket(testDna, bob))

	err := s.Serve(HandleFetchEntryResultMsg{FetchEntryResultData{
		DnaAddress: testDna, ProviderAgentID: bob, RequestID: id,
		EntryAddress: "addr9", EntryContent: []byte("x"),
	}})
	require.NoError(t, err)

	// Treated as a publish: HandleStoreEntry fans out to every sink on the
	// DNA, the provider bob's own sink included.
	msg := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindHandleStoreEntry, msg.Kind())

	bucket := Bucket(testDna, bob)
	assert.Contains(t, s.PublishedEntries(bucket), EntryAddress("addr9"))
}

// =============================================================================
// PUBLISH / FETCH META
// =============================================================================

func TestPublishMetaFansOutAndBookkeeps(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)
	registerAgent(s, testDna, alice, 4)

	err := s.Serve(PublishMetaMsg{DhtMetaData{
		DnaAddress: testDna, ProviderAgentID: alice, EntryAddress: "addr1", Attribute: "crdt", Content: []byte("v"),
	}})
	require.NoError(t, err)

	msg := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindHandleStoreMeta, msg.Kind())

	bucket := Bucket(testDna, alice)
	assert.Contains(t, s.PublishedMeta(bucket), EntryAddress("addr1"))
}

// =============================================================================
// RECONCILIATION LIST RESULTS
// =============================================================================

func TestGetHoldingEntryListResultBookkeeps(t *testing.T) {
	s := newTestServer(t)
	bucket := Bucket(testDna, alice)
	id := s.CreateRequest(bucket)

	s.Serve(HandleGetHoldingEntryListResultMsg{EntryListData{
		DnaAddress: testDna, RequestID: id, EntryAddressList: []EntryAddress{"a1", "a2"},
	}})

	stored := s.StoredEntries(bucket)
	assert.ElementsMatch(t, []EntryAddress{"a1", "a2"}, stored)
}

func TestGetPublishingEntryListResultFetchesNewEntries(t *testing.T) {
	s := newTestServer(t)
	aliceSink := registerAgent(s, testDna, alice, 8)
	bucket := Bucket(testDna, alice)

	id := s.CreateRequest(bucket)
	err := s.Serve(HandleGetPublishingEntryListResultMsg{EntryListData{
		DnaAddress: testDna, RequestID: id, EntryAddressList: []EntryAddress{"new1"},
	}})
	require.NoError(t, err)

	msg := waitForMessage(t, aliceSink, time.Second)
	fetch, ok := msg.(HandleFetchEntryMsg)
	require.True(t, ok)
	assert.Equal(t, EntryAddress("new1"), fetch.EntryAddress)
}

func TestGetPublishingEntryListResultSkipsAlreadyKnownEntries(t *testing.T) {
	s := newTestServer(t)
	aliceSink := registerAgent(s, testDna, alice, 8)
	bucket := Bucket(testDna, alice)

	Bookkeep(s.publishedEntryBook, bucket, "known1")

	id := s.CreateRequest(bucket)
	err := s.Serve(HandleGetPublishingEntryListResultMsg{EntryListData{
		DnaAddress: testDna, RequestID: id, EntryAddressList: []EntryAddress{"known1"},
	}})
	require.NoError(t, err)
	assertNoMessage(t, aliceSink, 50*time.Millisecond)
}

func TestGetHoldingMetaListResultStoresDataAddress(t *testing.T) {
	s := newTestServer(t)
	bucket := Bucket(testDna, alice)
	id := s.CreateRequest(bucket)

	s.Serve(HandleGetHoldingMetaListResultMsg{MetaListData{
		DnaAddress: testDna, RequestID: id,
		MetaList: []MetaListEntry{{DataAddress: "d1", Attribute: "crdt"}},
	}})

	stored := s.StoredMeta(bucket)
	assert.Contains(t, stored, EntryAddress("d1"))
}

func TestListResultWithUnknownRequestIDPanics(t *testing.T) {
	s := newTestServer(t)
	assert.Panics(t, func() {
		s.Serve(HandleGetHoldingEntryListResultMsg{EntryListData{
			DnaAddress: testDna, RequestID: "req_bogus", EntryAddressList: nil,
		}})
	})
}

// =============================================================================
// FAILURE RESULT ROUTING
// =============================================================================

func TestFailureResultForInternalRequestIsSwallowed(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)
	bucket := Bucket(testDna, bob)
	id := s.CreateRequest(bucket)

	err := s.Serve(FailureResultMsg{DnaAddress: testDna, ToAgentID: bob, RequestID: id, ErrorInfo: "boom"})
	require.NoError(t, err)
	assertNoMessage(t, bobSink, 50*time.Millisecond)
}

func TestFailureResultForExternalRequestIsRelayed(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)

	err := s.Serve(FailureResultMsg{DnaAddress: testDna, ToAgentID: bob, RequestID: "req_ext", ErrorInfo: "boom"})
	require.NoError(t, err)

	msg := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindFailureResult, msg.Kind())
}

// =============================================================================
// SUCCESS RESULT ROUTING
// =============================================================================

func TestSuccessResultIsRelayedVerbatim(t *testing.T) {
	s := newTestServer(t)
	bobSink := registerAgent(s, testDna, bob, 4)

	err := s.Serve(SuccessResultMsg{DnaAddress: testDna, ToAgentID: bob, RequestID: "req_1"})
	require.NoError(t, err)

	msg := waitForMessage(t, bobSink, time.Second)
	assert.Equal(t, KindSuccessResult, msg.Kind())
}
