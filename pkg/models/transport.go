package models

// ProcessRequest holds the query parameters of a process_file call
type ProcessRequest struct {
	Container        string `form:"container"`
	Path             string `form:"path"`
	IDField          string `form:"id_field"`
	FolderIDIdx      string `form:"folder_id_idx"`
	ConnectionEnvIn  string `form:"con_env_in"`
	ConnectionEnvOut string `form:"con_env_out"`
	ContainerOut     string `form:"container_out"`
	FolderOut        string `form:"folder_out"`
}

// ProcessResponse is returned when a file was processed.
// Identifier and OutputPaths are null when no identifier was resolved.
type ProcessResponse struct {
	Container   string   `json:"container"`
	Path        string   `json:"path"`
	Detections  []string `json:"detections"`
	Identifier  *string  `json:"identifier"`
	OutputPaths []string `json:"output_paths"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
