package httpapi

// Response signals identify API outcomes to the frontend independently
// of HTTP status codes.
const (
	SignalFileUploadSuccess = "file_upload_success"
	SignalFileUploadFailed  = "file_upload_failed"

	SignalProcessingSuccess = "processing_success"
	SignalNoFilesError      = "no_files_error"

	SignalVectorDBInsertSuccess       = "insert_into_vectordb_success"
	SignalVectorDBInsertError         = "insert_into_vectordb_error"
	SignalVectorDBCollectionRetrieved = "vectordb_collection_retrieved"
	SignalVectorDBSearchSuccess       = "vectordb_search_success"
	SignalVectorDBSearchError         = "vectordb_search_error"

	SignalRAGAnswerSuccess = "rag_answer_success"
	SignalRAGAnswerError   = "rag_answer_error"
)

// envelope is the common response shape carrying a signal plus
// endpoint-specific fields.
type envelope map[string]any

func signalResponse(signal string, fields envelope) envelope {
	out := envelope{"signal": signal}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
