package reservation

const (
	operationCreate = "create"
	operationCancel = "cancel"
	operationList   = "list"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorOperationService = "service"
	errorOperationLedger  = "ledger"
	errorSubjectBook      = "book"
	errorSubjectQueue     = "queue"
	errorCodeContiguity   = "contiguity"
	errorCodeCounts       = "counts"
	errorCodePromote      = "promote"
	errorCodeRelease      = "release"
)
