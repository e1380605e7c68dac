package netsim

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// dnaSinkEntry pairs a Sink with the bucket it was registered under, so
// per-DNA multicast lists can be deduplicated by bucket on re-registration
// (see SPEC_FULL.md §13, Open Question Decision 1).
type dnaSinkEntry struct {
	bucket BucketID
	sink   Sink
}

// Recorder receives observational callbacks from Serve. It is optional —
// a nil Recorder means no metrics/tracing are recorded — and its methods
// must never influence routing outcomes, only observe them. The concrete
// implementation used in production lives in netsim/observability.
type Recorder interface {
	MessageRouted(dna DnaAddress, kind MessageKind, fanout int)
	FetchFailed(dna DnaAddress, kind MessageKind)
	RouteError(dna DnaAddress, kind MessageKind)
}

// Server is the state machine that owns routing tables, address books,
// and the request ledger for one simulated network universe. All public
// methods are linearized by mu, matching spec.md §5: "each server is
// protected by a single mutual-exclusion lock, acquired on entry to every
// public method and released on return."
type Server struct {
	mu sync.Mutex

	name string

	senders      map[BucketID]Sink
	sendersByDNA map[DnaAddress][]dnaSinkEntry

	trackDnaBook map[BucketID]struct{}

	publishedEntryBook AddressBook
	storedEntryBook    AddressBook
	publishedMetaBook  AddressBook
	storedMetaBook     AddressBook

	requests *requestBook

	clientCount int

	logger   Logger
	recorder Recorder

	reconciliationEnabled bool
}

// NewServer creates a new, empty simulated network universe named name.
// A nil logger defaults to DefaultLogger(); a nil recorder disables
// metrics/tracing callbacks. When reconciliationEnabled is false, TrackDna
// still performs the idempotent track bookkeeping and PeerConnected
// multicast, but skips the four GetPublishing/GetHolding reconciliation
// requests — useful for scenario tests that only care about direct
// messaging.
func NewServer(name string, logger Logger, recorder Recorder, reconciliationEnabled bool) *Server {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &Server{
		name:                  name,
		senders:               make(map[BucketID]Sink),
		sendersByDNA:          make(map[DnaAddress][]dnaSinkEntry),
		trackDnaBook:          make(map[BucketID]struct{}),
		publishedEntryBook:    make(AddressBook),
		storedEntryBook:       make(AddressBook),
		publishedMetaBook:     make(AddressBook),
		storedMetaBook:        make(AddressBook),
		requests:              newRequestBook(),
		logger:                logger,
		recorder:              recorder,
		reconciliationEnabled: reconciliationEnabled,
	}
}

// Name returns the universe name this server was created with.
func (s *Server) Name() string { return s.name }

// ClockIn registers one more connected client. No routing state is
// created here; the client is still anonymous until it Registers a sink.
func (s *Server) ClockIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCount++
}

// ClockOut removes one connected client. It panics with
// *AlreadyClockedOutError if no clients are clocked in — spec.md §7 treats
// this as an invariant violation, not a recoverable error. When the last
// client clocks out, the routing tables are cleared; address books and the
// request ledger are retained.
func (s *Server) ClockOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientCount == 0 {
		panic(&AlreadyClockedOutError{})
	}
	s.clientCount--
	if s.clientCount == 0 {
		s.senders = make(map[BucketID]Sink)
		s.sendersByDNA = make(map[DnaAddress][]dnaSinkEntry)
	}
}

// ClientCount reports the number of clocked-in clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientCount
}

// TrackedDnaCount reports the number of (dna, agent) buckets that have
// completed the track handshake.
func (s *Server) TrackedDnaCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackDnaBook)
}

// Register installs sink as the route for (dna, agent). Re-registering
// the same (dna, agent) overwrites the unicast entry and, per Open
// Question Decision 1, replaces (rather than duplicates) its entry in the
// per-DNA multicast list.
func (s *Server) Register(dna DnaAddress, agent AgentID, sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := Bucket(dna, agent)
	s.senders[bucket] = sink

	entries := s.sendersByDNA[dna]
	filtered := entries[:0]
	for _, e := range entries {
		if e.bucket != bucket {
			filtered = append(filtered, e)
		}
	}
	s.sendersByDNA[dna] = append(filtered, dnaSinkEntry{bucket: bucket, sink: sink})

	s.logger.Debug("agent_registered", "server", s.name, "dna", dna, "agent", agent)
}

// --- private send helpers ----------------------------------------------------

func (s *Server) sendOneBucket(bucket BucketID, msg ProtocolMessage) error {
	sink, ok := s.senders[bucket]
	if !ok {
		return &NoRouteError{Bucket: bucket}
	}
	s.logger.Debug("send", "server", s.name, "bucket", bucket, "kind", msg.Kind())
	return sink.Send(msg)
}

func (s *Server) sendOne(dna DnaAddress, agent AgentID, msg ProtocolMessage) error {
	return s.sendOneBucket(Bucket(dna, agent), msg)
}

func (s *Server) sendAll(dna DnaAddress, msg ProtocolMessage) error {
	entries := s.sendersByDNA[dna]
	s.logger.Debug("send_all", "server", s.name, "dna", dna, "kind", msg.Kind(), "fanout", len(entries))
	if s.recorder != nil {
		s.recorder.MessageRouted(dna, msg.Kind(), len(entries))
	}
	for _, e := range entries {
		if err := e.sink.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// firstSink returns the earliest-registered surviving sink on dna, if any.
func (s *Server) firstSink(dna DnaAddress) (Sink, bool) {
	entries := s.sendersByDNA[dna]
	if len(entries) == 0 {
		return nil, false
	}
	return entries[0].sink, true
}

// --- request ledger, exported for callers that need direct access -----------

// CreateRequest mints and registers a fresh internal request for bucket.
func (s *Server) CreateRequest(bucket BucketID) RequestID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests.create(bucket)
}

// DropRequest removes id from the ledger, reporting whether it was present.
func (s *Server) DropRequest(id RequestID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests.drop(id)
}

// CheckRequest looks up id and, if present, consumes it and returns the
// bucket it was issued for.
func (s *Server) CheckRequest(id RequestID) (BucketID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests.check(id)
}

// newCorrelationID mints an opaque id for log/trace correlation only. It
// never appears in the wire protocol or in RequestID, which stays the
// spec-mandated req_{n} counter (see SPEC_FULL.md §11).
func newCorrelationID() string {
	return uuid.NewString()
}

// Serve is the inbound dispatcher: it accepts one ProtocolMessage from a
// client and routes it per spec.md §4.4. Serve acquires the server lock
// for its entire duration, so every message it emits is observed by
// sinks in the order Serve emits them, and calls to Serve on the same
// Server are totally ordered (spec.md §5).
func (s *Server) Serve(msg ProtocolMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cid := newCorrelationID()
	s.logger.Debug("recv", "server", s.name, "cid", cid, "kind", msg.Kind())

	var err error
	switch m := msg.(type) {
	case SuccessResultMsg:
		err = s.sendOne(m.DnaAddress, m.ToAgentID, m)
	case FailureResultMsg:
		err = s.handleFailureResult(m)
	case TrackDnaMsg:
		err = s.handleTrackDna(m)
	case SendMessageMsg:
		err = s.sendOne(m.DnaAddress, m.ToAgentID, HandleSendMessageMsg{m.MessageData})
	case HandleSendMessageResultMsg:
		err = s.sendOne(m.DnaAddress, m.ToAgentID, SendMessageResultMsg{m.MessageData})
	case PublishEntryMsg:
		err = s.handlePublishEntry(m)
	case FetchEntryMsg:
		err = s.handleFetchEntry(m)
	case HandleFetchEntryResultMsg:
		err = s.handleFetchEntryResult(m)
	case PublishMetaMsg:
		err = s.handlePublishMeta(m)
	case FetchMetaMsg:
		err = s.handleFetchMeta(m)
	case HandleFetchMetaResultMsg:
		err = s.handleFetchMetaResult(m)
	case HandleGetPublishingEntryListResultMsg:
		err = s.handleGetPublishingEntryListResult(m)
	case HandleGetHoldingEntryListResultMsg:
		s.handleGetHoldingEntryListResult(m)
	case HandleGetPublishingMetaListResultMsg:
		err = s.handleGetPublishingMetaListResult(m)
	case HandleGetHoldingMetaListResultMsg:
		s.handleGetHoldingMetaListResult(m)
	default:
		// Unrecognized or not-yet-decoded variant: silently ignored per
		// spec.md §4.4 / §7 "Decoding failure".
		s.logger.Debug("serve_ignored", "server", s.name, "cid", cid, "kind", msg.Kind())
	}

	if err != nil && s.recorder != nil {
		s.recorder.RouteError(dnaOf(msg), msg.Kind())
	}
	return err
}

// dnaOf extracts the DNA address carried by msg for observational
// purposes only; it never drives routing decisions.
func dnaOf(msg ProtocolMessage) DnaAddress {
	switch m := msg.(type) {
	case SuccessResultMsg:
		return m.DnaAddress
	case FailureResultMsg:
		return m.DnaAddress
	case TrackDnaMsg:
		return m.DnaAddress
	case SendMessageMsg:
		return m.DnaAddress
	case HandleSendMessageResultMsg:
		return m.DnaAddress
	case PublishEntryMsg:
		return m.DnaAddress
	case FetchEntryMsg:
		return m.DnaAddress
	case HandleFetchEntryResultMsg:
		return m.DnaAddress
	case PublishMetaMsg:
		return m.DnaAddress
	case FetchMetaMsg:
		return m.DnaAddress
	case HandleFetchMetaResultMsg:
		return m.DnaAddress
	case HandleGetPublishingEntryListResultMsg:
		return m.DnaAddress
	case HandleGetHoldingEntryListResultMsg:
		return m.DnaAddress
	case HandleGetPublishingMetaListResultMsg:
		return m.DnaAddress
	case HandleGetHoldingMetaListResultMsg:
		return m.DnaAddress
	default:
		return ""
	}
}

func (s *Server) handleFailureResult(m FailureResultMsg) error {
	if _, ok := s.requests.check(m.RequestID); ok {
		s.logger.Debug("internal_request_failed", "server", s.name, "request_id", m.RequestID, "error", m.ErrorInfo)
		return nil
	}
	return s.sendOne(m.DnaAddress, m.ToAgentID, m)
}

func (s *Server) handleTrackDna(m TrackDnaMsg) error {
	bucket := Bucket(m.DnaAddress, m.AgentID)
	if _, tracked := s.trackDnaBook[bucket]; tracked {
		s.logger.Debug("trackdna_already_tracked", "server", s.name, "bucket", bucket)
		return nil
	}
	s.trackDnaBook[bucket] = struct{}{}

	if err := s.sendAll(m.DnaAddress, PeerConnectedMsg{AgentID: m.AgentID}); err != nil {
		return err
	}
	if !s.reconciliationEnabled {
		return nil
	}
	return s.requestLists(m.DnaAddress, m.AgentID, bucket)
}

// requestLists issues the four reconciliation requests in the order
// mandated by spec.md §4.4.
func (s *Server) requestLists(dna DnaAddress, agent AgentID, bucket BucketID) error {
	kinds := []func(RequestID) ProtocolMessage{
		func(id RequestID) ProtocolMessage {
			return HandleGetPublishingEntryListMsg{GetListData{DnaAddress: dna, RequestID: id}}
		},
		func(id RequestID) ProtocolMessage {
			return HandleGetHoldingEntryListMsg{GetListData{DnaAddress: dna, RequestID: id}}
		},
		func(id RequestID) ProtocolMessage {
			return HandleGetPublishingMetaListMsg{GetListData{DnaAddress: dna, RequestID: id}}
		},
		func(id RequestID) ProtocolMessage {
			return HandleGetHoldingMetaListMsg{GetListData{DnaAddress: dna, RequestID: id}}
		},
	}
	for _, build := range kinds {
		id := s.requests.create(bucket)
		if err := s.sendOneBucket(bucket, build(id)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handlePublishEntry(m PublishEntryMsg) error {
	bucket := Bucket(m.DnaAddress, m.ProviderAgentID)
	Bookkeep(s.publishedEntryBook, bucket, m.EntryAddress)
	return s.sendAll(m.DnaAddress, HandleStoreEntryMsg{m.EntryData})
}

func (s *Server) handleFetchEntry(m FetchEntryMsg) error {
	if sink, ok := s.firstSink(m.DnaAddress); ok {
		return sink.Send(HandleFetchEntryMsg{m.FetchEntryData})
	}
	if s.recorder != nil {
		s.recorder.FetchFailed(m.DnaAddress, KindFetchEntry)
	}
	return s.sendOne(m.DnaAddress, m.RequesterAgentID, FailureResultMsg{
		DnaAddress: m.DnaAddress,
		ToAgentID:  m.RequesterAgentID,
		RequestID:  m.RequestID,
		ErrorInfo:  "could not find nodes handling this dnaAddress",
	})
}

func (s *Server) handleFetchEntryResult(m HandleFetchEntryResultMsg) error {
	if _, ok := s.requests.check(m.RequestID); ok {
		return s.handlePublishEntry(PublishEntryMsg{EntryData{
			DnaAddress:      m.DnaAddress,
			ProviderAgentID: m.ProviderAgentID,
			EntryAddress:    m.EntryAddress,
			EntryContent:    m.EntryContent,
		}})
	}
	return s.sendOne(m.DnaAddress, m.RequesterAgentID, FetchEntryResultMsg{m.FetchEntryResultData})
}

func (s *Server) handlePublishMeta(m PublishMetaMsg) error {
	// Open Question Decision 2: publish bookkeeps data_address so the
	// reconciliation comparison below is meaningful instead of always
	// comparing against an empty set.
	bucket := Bucket(m.DnaAddress, m.ProviderAgentID)
	Bookkeep(s.publishedMetaBook, bucket, m.EntryAddress)
	return s.sendAll(m.DnaAddress, HandleStoreMetaMsg{m.DhtMetaData})
}

func (s *Server) handleFetchMeta(m FetchMetaMsg) error {
	if sink, ok := s.firstSink(m.DnaAddress); ok {
		return sink.Send(HandleFetchMetaMsg{m.FetchMetaData})
	}
	if s.recorder != nil {
		s.recorder.FetchFailed(m.DnaAddress, KindFetchMeta)
	}
	return s.sendOne(m.DnaAddress, m.RequesterAgentID, FailureResultMsg{
		DnaAddress: m.DnaAddress,
		ToAgentID:  m.RequesterAgentID,
		RequestID:  m.RequestID,
		ErrorInfo:  "could not find nodes handling this dnaAddress",
	})
}

func (s *Server) handleFetchMetaResult(m HandleFetchMetaResultMsg) error {
	if _, ok := s.requests.check(m.RequestID); ok {
		return s.handlePublishMeta(PublishMetaMsg{DhtMetaData{
			DnaAddress:      m.DnaAddress,
			ProviderAgentID: m.ProviderAgentID,
			EntryAddress:    m.EntryAddress,
			Attribute:       m.Attribute,
			Content:         m.Content,
		}})
	}
	return s.sendOne(m.DnaAddress, m.RequesterAgentID, FetchMetaResultMsg{m.FetchMetaResultData})
}

func (s *Server) handleGetPublishingEntryListResult(m HandleGetPublishingEntryListResultMsg) error {
	bucket, ok := s.requests.check(m.RequestID)
	if !ok {
		panic(&NotOurRequestError{RequestID: m.RequestID})
	}
	for _, addr := range m.EntryAddressList {
		if s.publishedEntryBook.Contains(bucket, addr) {
			continue
		}
		id := s.requests.create(bucket)
		if err := s.sendOneBucket(bucket, HandleFetchEntryMsg{FetchEntryData{
			RequesterAgentID: "",
			RequestID:        id,
			DnaAddress:       m.DnaAddress,
			EntryAddress:     addr,
		}}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleGetHoldingEntryListResult(m HandleGetHoldingEntryListResultMsg) {
	bucket, ok := s.requests.check(m.RequestID)
	if !ok {
		panic(&NotOurRequestError{RequestID: m.RequestID})
	}
	for _, addr := range m.EntryAddressList {
		if s.storedEntryBook.Contains(bucket, addr) {
			continue
		}
		Bookkeep(s.storedEntryBook, bucket, addr)
	}
}

func (s *Server) handleGetPublishingMetaListResult(m HandleGetPublishingMetaListResultMsg) error {
	bucket, ok := s.requests.check(m.RequestID)
	if !ok {
		panic(&NotOurRequestError{RequestID: m.RequestID})
	}
	for _, entry := range m.MetaList {
		// Open Question Decision 2: compare against data_address, which
		// publishedMetaBook now actually contains.
		if s.publishedMetaBook.Contains(bucket, entry.DataAddress) {
			continue
		}
		id := s.requests.create(bucket)
		if err := s.sendOneBucket(bucket, HandleFetchMetaMsg{FetchMetaData{
			DnaAddress:       m.DnaAddress,
			RequesterAgentID: "",
			RequestID:        id,
			EntryAddress:     entry.DataAddress,
			Attribute:        entry.Attribute,
		}}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleGetHoldingMetaListResult(m HandleGetHoldingMetaListResultMsg) {
	bucket, ok := s.requests.check(m.RequestID)
	if !ok {
		panic(&NotOurRequestError{RequestID: m.RequestID})
	}
	for _, entry := range m.MetaList {
		// Open Question Decision 2: store data_address, matching the
		// comparison above, instead of the derived meta_address.
		if s.storedMetaBook.Contains(bucket, entry.DataAddress) {
			continue
		}
		Bookkeep(s.storedMetaBook, bucket, entry.DataAddress)
	}
}

// PublishedEntries returns a snapshot of what bucket is recorded as
// publishing. Exposed for tests and introspection tooling.
func (s *Server) PublishedEntries(bucket BucketID) []EntryAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EntryAddress(nil), s.publishedEntryBook[bucket]...)
}

// StoredEntries returns a snapshot of what bucket is recorded as holding.
func (s *Server) StoredEntries(bucket BucketID) []EntryAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EntryAddress(nil), s.storedEntryBook[bucket]...)
}

// PublishedMeta returns a snapshot of the metadata data-addresses bucket
// is recorded as publishing.
func (s *Server) PublishedMeta(bucket BucketID) []EntryAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EntryAddress(nil), s.publishedMetaBook[bucket]...)
}

// StoredMeta returns a snapshot of the metadata data-addresses bucket is
// recorded as holding.
func (s *Server) StoredMeta(bucket BucketID) []EntryAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EntryAddress(nil), s.storedMetaBook[bucket]...)
}

// IsTracked reports whether bucket has completed the track handshake.
func (s *Server) IsTracked(bucket BucketID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trackDnaBook[bucket]
	return ok
}

// String implements fmt.Stringer for debugging and log lines.
func (s *Server) String() string {
	return fmt.Sprintf("netsim.Server{name=%q}", s.name)
}
