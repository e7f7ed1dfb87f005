package cratedigger

import "github.com/daitomanabe/cratedigger/codec"

// Schema describes the public API surface in a machine-readable form, so
// language bindings and tooling can discover the available commands
// without reading Go source. It is versioned independently of the module.
type Schema struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Commands []Command `json:"commands"`
	// Top-level tensor bindings: the arrays a caller feeds in and the
	// columns the bulk extractors produce, independent of any one command.
	Inputs  []Tensor `json:"inputs"`
	Outputs []Tensor `json:"outputs"`
}

// Command describes one operation: its scalar parameters and the tensors
// (typed arrays) it consumes and produces.
type Command struct {
	Name    string   `json:"name"`
	Doc     string   `json:"doc"`
	Params  []Param  `json:"params,omitempty"`
	Inputs  []Tensor `json:"inputs,omitempty"`
	Outputs []Tensor `json:"outputs,omitempty"`
}

// Param is a scalar command parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Doc  string `json:"doc,omitempty"`
}

// Tensor is a typed, possibly variable-length array bound to a command.
type Tensor struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape"` // -1 marks a variable dimension
	Doc   string `json:"doc,omitempty"`
}

const (
	schemaName    = "crate_digger"
	schemaVersion = "1.0.0"
)

// DescribeAPI returns the schema of the full command surface. The result
// is freshly allocated and safe to mutate.
func DescribeAPI() *Schema {
	return &Schema{
		Name:    schemaName,
		Version: schemaVersion,
		Commands: []Command{
			{
				Name: "open",
				Doc:  "Open and index an export database file.",
				Params: []Param{
					{Name: "path", Type: "string", Doc: "Path to the export database."},
				},
			},
			{
				Name: "close",
				Doc:  "Release the database handle.",
			},
			{
				Name: "describe_api",
				Doc:  "Return this schema.",
			},
			{
				Name: "get_track",
				Doc:  "Fetch one track record with all resolved string fields.",
				Params: []Param{
					{Name: "id", Type: "uint32", Doc: "Track identifier."},
				},
			},
			{
				Name:   "get_artist",
				Doc:    "Fetch one artist record.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name:   "get_album",
				Doc:    "Fetch one album record.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name:   "get_genre",
				Doc:    "Fetch one genre record.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name:   "get_label",
				Doc:    "Fetch one label record.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name:   "get_key",
				Doc:    "Fetch one musical key record.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name:   "get_color",
				Doc:    "Fetch one color record.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name:   "get_artwork",
				Doc:    "Fetch one artwork record.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name:   "get_playlist",
				Doc:    "Fetch one playlist tree entry.",
				Params: []Param{{Name: "id", Type: "uint32"}},
			},
			{
				Name: "all_track_ids",
				Doc:  "Enumerate every track identifier in ascending order.",
				Outputs: []Tensor{
					{Name: "ids", DType: "uint32", Shape: []int{-1}},
				},
			},
			{
				Name: "track_count",
				Doc:  "Count live track rows.",
			},
			{
				Name: "playlist_tracks",
				Doc:  "List the tracks of a playlist in play order.",
				Params: []Param{
					{Name: "playlist_id", Type: "uint32"},
				},
				Outputs: []Tensor{
					{Name: "track_ids", DType: "uint32", Shape: []int{-1}},
				},
			},
			{
				Name: "find_tracks_by_title",
				Doc:  "List the tracks whose title matches, ignoring case.",
				Params: []Param{
					{Name: "title", Type: "string"},
				},
				Outputs: []Tensor{
					{Name: "track_ids", DType: "uint32", Shape: []int{-1}},
				},
			},
			{
				Name: "find_tracks_by_artist",
				Doc:  "List the tracks credited to an artist in any role.",
				Params: []Param{
					{Name: "artist_id", Type: "uint32"},
				},
				Outputs: []Tensor{
					{Name: "track_ids", DType: "uint32", Shape: []int{-1}},
				},
			},
			{
				Name: "find_tracks_by_bpm_range",
				Doc:  "List the tracks whose tempo lies in an inclusive range.",
				Params: []Param{
					{Name: "min", Type: "float64", Doc: "Lower tempo bound in BPM."},
					{Name: "max", Type: "float64", Doc: "Upper tempo bound in BPM."},
				},
				Outputs: []Tensor{
					{Name: "track_ids", DType: "uint32", Shape: []int{-1}},
				},
			},
			{
				Name: "get_all_bpms",
				Doc:  "Extract the tempo column across every track.",
				Outputs: []Tensor{
					{Name: "bpms", DType: "float64", Shape: []int{-1},
						Doc: "Tempo per track, ascending track identifier order."},
				},
			},
			{
				Name: "get_all_durations",
				Doc:  "Extract the duration column across every track.",
				Outputs: []Tensor{
					{Name: "durations", DType: "int32", Shape: []int{-1},
						Doc: "Duration in seconds per track."},
				},
			},
			{
				Name: "get_all_years",
				Doc:  "Extract the release year column across every track.",
				Outputs: []Tensor{
					{Name: "years", DType: "int32", Shape: []int{-1}},
				},
			},
			{
				Name: "get_all_ratings",
				Doc:  "Extract the rating column across every track.",
				Outputs: []Tensor{
					{Name: "ratings", DType: "int32", Shape: []int{-1}},
				},
			},
			{
				Name: "get_all_bitrates",
				Doc:  "Extract the bitrate column across every track.",
				Outputs: []Tensor{
					{Name: "bitrates", DType: "int32", Shape: []int{-1}},
				},
			},
			{
				Name: "get_all_sample_rates",
				Doc:  "Extract the sample rate column across every track.",
				Outputs: []Tensor{
					{Name: "sample_rates", DType: "int32", Shape: []int{-1}},
				},
			},
			{
				Name: "load_cue_points",
				Doc:  "Scan a directory of analysis files and index cue points.",
				Params: []Param{
					{Name: "dir", Type: "string", Doc: "Analysis file root, e.g. PIONEER/USBANLZ."},
				},
			},
			{
				Name: "get_cue_points",
				Doc:  "List the cue points recorded for one track.",
				Params: []Param{
					{Name: "track_id", Type: "uint32"},
				},
				Outputs: []Tensor{
					{Name: "times_ms", DType: "int64", Shape: []int{-1},
						Doc: "Cue positions in milliseconds, ascending."},
				},
			},
		},
		Inputs: []Tensor{
			{Name: "track_ids", DType: "uint32", Shape: []int{-1},
				Doc: "Track identifiers accepted by the lookup commands."},
		},
		Outputs: []Tensor{
			{Name: "bpm_values", DType: "float64", Shape: []int{-1},
				Doc: "Tempo per track, ascending track identifier order."},
			{Name: "duration_values", DType: "int32", Shape: []int{-1}},
			{Name: "year_values", DType: "int32", Shape: []int{-1}},
			{Name: "rating_values", DType: "int32", Shape: []int{-1}},
			{Name: "bitrate_values", DType: "int32", Shape: []int{-1}},
			{Name: "sample_rate_values", DType: "int32", Shape: []int{-1}},
		},
	}
}

// MarshalSchema serializes the API schema with the given codec, or the
// default codec when nil.
func MarshalSchema(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	return c.Marshal(DescribeAPI())
}
