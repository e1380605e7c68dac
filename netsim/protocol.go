package netsim

// ProtocolMessage is the tagged sum type exchanged between agents and a
// Server. Every concrete message type below implements it; Kind reports
// which variant it is, so code that only needs the category (logging,
// metrics) gets it without a type switch. Serve itself dispatches with a
// type switch on the concrete type.
//
// The wire format (JSON or otherwise) is out of scope here: a separate
// serialization collaborator is responsible for producing these Go values
// from bytes. Serve receives the sum type directly.
type ProtocolMessage interface {
	Kind() MessageKind
}

// MessageKind names a ProtocolMessage variant for dispatch.
type MessageKind string

const (
	KindSuccessResult MessageKind = "SuccessResult"
	KindFailureResult MessageKind = "FailureResult"

	KindTrackDna       MessageKind = "TrackDna"
	KindPeerConnected  MessageKind = "PeerConnected"

	KindSendMessage             MessageKind = "SendMessage"
	KindHandleSendMessage       MessageKind = "HandleSendMessage"
	KindHandleSendMessageResult MessageKind = "HandleSendMessageResult"
	KindSendMessageResult       MessageKind = "SendMessageResult"

	KindPublishEntry          MessageKind = "PublishEntry"
	KindHandleStoreEntry      MessageKind = "HandleStoreEntry"
	KindFetchEntry            MessageKind = "FetchEntry"
	KindHandleFetchEntry      MessageKind = "HandleFetchEntry"
	KindHandleFetchEntryResult MessageKind = "HandleFetchEntryResult"
	KindFetchEntryResult      MessageKind = "FetchEntryResult"

	KindPublishMeta          MessageKind = "PublishMeta"
	KindHandleStoreMeta      MessageKind = "HandleStoreMeta"
	KindFetchMeta            MessageKind = "FetchMeta"
	KindHandleFetchMeta      MessageKind = "HandleFetchMeta"
	KindHandleFetchMetaResult MessageKind = "HandleFetchMetaResult"
	KindFetchMetaResult      MessageKind = "FetchMetaResult"

	KindHandleGetPublishingEntryList       MessageKind = "HandleGetPublishingEntryList"
	KindHandleGetPublishingEntryListResult MessageKind = "HandleGetPublishingEntryListResult"
	KindHandleGetHoldingEntryList          MessageKind = "HandleGetHoldingEntryList"
	KindHandleGetHoldingEntryListResult    MessageKind = "HandleGetHoldingEntryListResult"
	KindHandleGetPublishingMetaList        MessageKind = "HandleGetPublishingMetaList"
	KindHandleGetPublishingMetaListResult  MessageKind = "HandleGetPublishingMetaListResult"
	KindHandleGetHoldingMetaList           MessageKind = "HandleGetHoldingMetaList"
	KindHandleGetHoldingMetaListResult     MessageKind = "HandleGetHoldingMetaListResult"
)

// ErrorInfo carries a free-form failure description. A string is enough
// for the simulator; richer error payloads belong to the serialization
// collaborator.
type ErrorInfo string

// --- Generic --------------------------------------------------------------

// SuccessResultMsg is relayed verbatim to its recipient.
type SuccessResultMsg struct {
	DnaAddress DnaAddress
	ToAgentID  AgentID
	RequestID  RequestID
}

func (SuccessResultMsg) Kind() MessageKind { return KindSuccessResult }

// FailureResultMsg is relayed to its recipient unless RequestID matches an
// internally-issued request, in which case it is swallowed.
type FailureResultMsg struct {
	DnaAddress DnaAddress
	ToAgentID  AgentID
	RequestID  RequestID
	ErrorInfo  ErrorInfo
}

func (FailureResultMsg) Kind() MessageKind { return KindFailureResult }

// --- Membership -------------------------------------------------------------

// TrackDnaMsg starts the track handshake for (DnaAddress, AgentID).
type TrackDnaMsg struct {
	DnaAddress DnaAddress
	AgentID    AgentID
}

func (TrackDnaMsg) Kind() MessageKind { return KindTrackDna }

// PeerConnectedMsg is multicast to a DNA's peers when a new agent completes
// the track handshake.
type PeerConnectedMsg struct {
	AgentID AgentID
}

func (PeerConnectedMsg) Kind() MessageKind { return KindPeerConnected }

// --- Direct messaging -------------------------------------------------------

// MessageData is the payload shared by the direct-messaging variants.
type MessageData struct {
	DnaAddress DnaAddress
	ToAgentID  AgentID
	FromAgentID AgentID
	Content    []byte
}

// SendMessageMsg asks the server to relay Content to ToAgentID.
type SendMessageMsg struct{ MessageData }

func (SendMessageMsg) Kind() MessageKind { return KindSendMessage }

// HandleSendMessageMsg is the fabricated delivery to the recipient.
type HandleSendMessageMsg struct{ MessageData }

func (HandleSendMessageMsg) Kind() MessageKind { return KindHandleSendMessage }

// HandleSendMessageResultMsg is the recipient's reply.
type HandleSendMessageResultMsg struct{ MessageData }

func (HandleSendMessageResultMsg) Kind() MessageKind { return KindHandleSendMessageResult }

// SendMessageResultMsg is the fabricated delivery of the reply to the
// original sender.
type SendMessageResultMsg struct{ MessageData }

func (SendMessageResultMsg) Kind() MessageKind { return KindSendMessageResult }

// --- DHT entry data ----------------------------------------------------------

// EntryData is the payload shared by the publish/store entry variants.
type EntryData struct {
	DnaAddress        DnaAddress
	ProviderAgentID   AgentID
	EntryAddress      EntryAddress
	EntryContent      []byte
}

// PublishEntryMsg announces an entry to every peer on the DNA.
type PublishEntryMsg struct{ EntryData }

func (PublishEntryMsg) Kind() MessageKind { return KindPublishEntry }

// HandleStoreEntryMsg is the fan-out store request sent to every peer.
type HandleStoreEntryMsg struct{ EntryData }

func (HandleStoreEntryMsg) Kind() MessageKind { return KindHandleStoreEntry }

// FetchEntryData is the payload shared by the fetch entry variants.
type FetchEntryData struct {
	DnaAddress        DnaAddress
	RequesterAgentID  AgentID
	RequestID         RequestID
	EntryAddress      EntryAddress
}

// FetchEntryMsg requests an entry from the first available peer on the DNA.
type FetchEntryMsg struct{ FetchEntryData }

func (FetchEntryMsg) Kind() MessageKind { return KindFetchEntry }

// HandleFetchEntryMsg is the forwarded fetch sent to the responder.
type HandleFetchEntryMsg struct{ FetchEntryData }

func (HandleFetchEntryMsg) Kind() MessageKind { return KindHandleFetchEntry }

// FetchEntryResultData is the payload shared by the fetch entry result
// variants.
type FetchEntryResultData struct {
	DnaAddress       DnaAddress
	RequesterAgentID AgentID
	ProviderAgentID  AgentID
	RequestID        RequestID
	EntryAddress     EntryAddress
	EntryContent     []byte
}

// HandleFetchEntryResultMsg is the responder's reply. If RequestID was
// internally issued it is treated as a publish from ProviderAgentID;
// otherwise it is relayed to RequesterAgentID.
type HandleFetchEntryResultMsg struct{ FetchEntryResultData }

func (HandleFetchEntryResultMsg) Kind() MessageKind { return KindHandleFetchEntryResult }

// FetchEntryResultMsg is the fabricated delivery of a fetch result to the
// original requester.
type FetchEntryResultMsg struct{ FetchEntryResultData }

func (FetchEntryResultMsg) Kind() MessageKind { return KindFetchEntryResult }

// --- DHT metadata ------------------------------------------------------------

// DhtMetaData is the payload shared by the publish/store meta variants.
type DhtMetaData struct {
	DnaAddress      DnaAddress
	ProviderAgentID AgentID
	EntryAddress    EntryAddress
	Attribute       string
	Content         []byte
}

// PublishMetaMsg announces metadata to every peer on the DNA.
type PublishMetaMsg struct{ DhtMetaData }

func (PublishMetaMsg) Kind() MessageKind { return KindPublishMeta }

// HandleStoreMetaMsg is the fan-out store request sent to every peer.
type HandleStoreMetaMsg struct{ DhtMetaData }

func (HandleStoreMetaMsg) Kind() MessageKind { return KindHandleStoreMeta }

// FetchMetaData is the payload shared by the fetch meta variants.
type FetchMetaData struct {
	DnaAddress       DnaAddress
	RequesterAgentID AgentID
	RequestID        RequestID
	EntryAddress     EntryAddress
	Attribute        string
}

// FetchMetaMsg requests metadata from the first available peer on the DNA.
type FetchMetaMsg struct{ FetchMetaData }

func (FetchMetaMsg) Kind() MessageKind { return KindFetchMeta }

// HandleFetchMetaMsg is the forwarded fetch sent to the responder.
type HandleFetchMetaMsg struct{ FetchMetaData }

func (HandleFetchMetaMsg) Kind() MessageKind { return KindHandleFetchMeta }

// FetchMetaResultData is the payload shared by the fetch meta result
// variants.
type FetchMetaResultData struct {
	DnaAddress       DnaAddress
	RequesterAgentID AgentID
	ProviderAgentID  AgentID
	RequestID        RequestID
	EntryAddress     EntryAddress
	Attribute        string
	Content          []byte
}

// HandleFetchMetaResultMsg is the responder's reply. If RequestID was
// internally issued it is treated as a publish from ProviderAgentID;
// otherwise it is relayed to RequesterAgentID.
type HandleFetchMetaResultMsg struct{ FetchMetaResultData }

func (HandleFetchMetaResultMsg) Kind() MessageKind { return KindHandleFetchMetaResult }

// FetchMetaResultMsg is the fabricated delivery of a fetch result to the
// original requester.
type FetchMetaResultMsg struct{ FetchMetaResultData }

func (FetchMetaResultMsg) Kind() MessageKind { return KindFetchMetaResult }

// --- Reconciliation ----------------------------------------------------------

// GetListData is the payload shared by the four reconciliation requests.
type GetListData struct {
	DnaAddress DnaAddress
	RequestID  RequestID
}

// HandleGetPublishingEntryListMsg asks an agent what it publishes.
type HandleGetPublishingEntryListMsg struct{ GetListData }

func (HandleGetPublishingEntryListMsg) Kind() MessageKind {
	return KindHandleGetPublishingEntryList
}

// EntryListData answers one of the entry-list reconciliation requests.
type EntryListData struct {
	DnaAddress        DnaAddress
	RequestID         RequestID
	EntryAddressList  []EntryAddress
}

// HandleGetPublishingEntryListResultMsg answers HandleGetPublishingEntryListMsg.
type HandleGetPublishingEntryListResultMsg struct{ EntryListData }

func (HandleGetPublishingEntryListResultMsg) Kind() MessageKind {
	return KindHandleGetPublishingEntryListResult
}

// HandleGetHoldingEntryListMsg asks an agent what it holds.
type HandleGetHoldingEntryListMsg struct{ GetListData }

func (HandleGetHoldingEntryListMsg) Kind() MessageKind { return KindHandleGetHoldingEntryList }

// HandleGetHoldingEntryListResultMsg answers HandleGetHoldingEntryListMsg.
type HandleGetHoldingEntryListResultMsg struct{ EntryListData }

func (HandleGetHoldingEntryListResultMsg) Kind() MessageKind {
	return KindHandleGetHoldingEntryListResult
}

// HandleGetPublishingMetaListMsg asks an agent what metadata it publishes.
type HandleGetPublishingMetaListMsg struct{ GetListData }

func (HandleGetPublishingMetaListMsg) Kind() MessageKind {
	return KindHandleGetPublishingMetaList
}

// MetaListEntry pairs a data address with the attribute of the metadata
// attached to it.
type MetaListEntry struct {
	DataAddress EntryAddress
	Attribute   string
}

// MetaListData answers one of the meta-list reconciliation requests.
type MetaListData struct {
	DnaAddress DnaAddress
	RequestID  RequestID
	MetaList   []MetaListEntry
}

// HandleGetPublishingMetaListResultMsg answers HandleGetPublishingMetaListMsg.
type HandleGetPublishingMetaListResultMsg struct{ MetaListData }

func (HandleGetPublishingMetaListResultMsg) Kind() MessageKind {
	return KindHandleGetPublishingMetaListResult
}

// HandleGetHoldingMetaListMsg asks an agent what metadata it holds.
type HandleGetHoldingMetaListMsg struct{ GetListData }

func (HandleGetHoldingMetaListMsg) Kind() MessageKind { return KindHandleGetHoldingMetaList }

// HandleGetHoldingMetaListResultMsg answers HandleGetHoldingMetaListMsg.
type HandleGetHoldingMetaListResultMsg struct{ MetaListData }

func (HandleGetHoldingMetaListResultMsg) Kind() MessageKind {
	return KindHandleGetHoldingMetaListResult
}
