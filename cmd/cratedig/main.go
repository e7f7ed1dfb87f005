// Command cratedig inspects rekordbox export databases from the shell.
//
// It prints the API schema, dumps a database as JSON lines (optionally
// zstd-compressed), or answers single queries:
//
//	cratedig -schema
//	cratedig -db export.pdb -dump tracks.jsonl.zst
//	cratedig -db export.pdb -track 42
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/daitomanabe/cratedigger"
	"github.com/daitomanabe/cratedigger/codec"
)

const version = "1.0.0"

func main() {
	var (
		dbPath    = flag.String("db", "", "path to the export database")
		anlzDir   = flag.String("anlz", "", "analysis file directory for cue points")
		schema    = flag.Bool("schema", false, "print the API schema and exit")
		dump      = flag.String("dump", "", "dump all tracks as JSON lines to the given file ('-' for stdout)")
		trackID   = flag.Uint("track", 0, "print one track as JSON")
		codecName = flag.String("codec", codec.Default.Name(), "serialization codec")
		verbose   = flag.Bool("v", false, "verbose logging")
		showVer   = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println("cratedig", version)
		return
	}

	c, ok := codec.ByName(*codecName)
	if !ok {
		fatal(fmt.Errorf("unknown codec %q", *codecName))
	}

	if *schema {
		out, err := cratedigger.MarshalSchema(c)
		if err != nil {
			fatal(err)
		}
		os.Stdout.Write(out)
		fmt.Println()
		return
	}

	if *dbPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	opts := []cratedigger.Option{cratedigger.WithCodec(c)}
	if *verbose {
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, cratedigger.WithLogger(cratedigger.NewLogger(h)))
	}

	db, err := cratedigger.Open(*dbPath, opts...)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	if *anlzDir != "" {
		if err := db.LoadCuePoints(*anlzDir); err != nil {
			fatal(err)
		}
	}

	switch {
	case *dump != "":
		err = dumpTracks(db, c, *dump)
	case *trackID != 0:
		err = printTrack(db, c, cratedigger.TrackID(*trackID))
	default:
		if err = printSummary(db); err == nil {
			err = serveCommands(db, c, os.Stdin, os.Stdout)
		}
	}
	if err != nil {
		fatal(err)
	}
}

type commandRequest struct {
	Cmd   string  `json:"cmd"`
	ID    uint32  `json:"id,omitempty"`
	Title string  `json:"title,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
}

type commandResponse struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// serveCommands answers one JSON command per input line until EOF or an
// explicit exit command.
func serveCommands(db *cratedigger.Database, c codec.Codec, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req commandRequest
		var resp commandResponse
		if err := c.Unmarshal([]byte(line), &req); err != nil {
			resp.Error = err.Error()
		} else if req.Cmd == "exit" {
			return nil
		} else {
			result, err := runCommand(db, req)
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.OK = true
				resp.Result = result
			}
		}

		encoded, err := c.Marshal(resp)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(encoded, '\n')); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runCommand(db *cratedigger.Database, req commandRequest) (any, error) {
	switch req.Cmd {
	case "describe_api":
		return cratedigger.DescribeAPI(), nil
	case "track_count":
		return db.TrackCount()
	case "get_track":
		return db.GetTrack(cratedigger.TrackID(req.ID))
	case "get_artist":
		return db.GetArtist(cratedigger.ArtistID(req.ID))
	case "get_album":
		return db.GetAlbum(cratedigger.AlbumID(req.ID))
	case "get_playlist":
		return db.GetPlaylist(cratedigger.PlaylistID(req.ID))
	case "playlist_tracks":
		return db.PlaylistTracks(cratedigger.PlaylistID(req.ID))
	case "all_track_ids":
		return db.AllTrackIDs()
	case "find_tracks_by_title":
		return db.FindTracksByTitle(req.Title)
	case "find_tracks_by_bpm_range":
		return db.FindTracksByBPMRange(req.Min, req.Max)
	case "get_all_bpms":
		bpms, skipped, err := db.AllBPMs()
		if err != nil {
			return nil, err
		}
		return map[string]any{"bpms": bpms, "skipped": skipped}, nil
	case "get_cue_points":
		return db.CuePointsForTrack(cratedigger.TrackID(req.ID))
	default:
		return nil, fmt.Errorf("unknown command %q", req.Cmd)
	}
}

// dumpTracks writes every track record as one JSON object per line. A
// path ending in .zst gets zstd compression.
func dumpTracks(db *cratedigger.Database, c codec.Codec, path string) error {
	var out io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f

		if strings.HasSuffix(path, ".zst") {
			zw, err := zstd.NewWriter(f)
			if err != nil {
				return err
			}
			defer zw.Close()
			out = zw
		}
	}
	return dumpTracksTo(db, c, out)
}

func dumpTracksTo(db *cratedigger.Database, c codec.Codec, out io.Writer) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	ids, err := db.AllTrackIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		track, err := db.GetTrack(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "track %d: %v\n", id, err)
			continue
		}
		line, err := c.Marshal(track)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func printTrack(db *cratedigger.Database, c codec.Codec, id cratedigger.TrackID) error {
	track, err := db.GetTrack(id)
	if err != nil {
		return err
	}
	out, err := c.Marshal(track)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	fmt.Println()

	if cues, err := db.CuePointsForTrack(id); err == nil && len(cues) > 0 {
		for _, cue := range cues {
			fmt.Printf("cue %s at %dms\n", cue.Type, cue.TimeMS)
		}
	}
	return nil
}

func printSummary(db *cratedigger.Database) error {
	type counter struct {
		name  string
		count func() (int, error)
	}
	for _, c := range []counter{
		{"tracks", db.TrackCount},
		{"artists", db.ArtistCount},
		{"albums", db.AlbumCount},
		{"genres", db.GenreCount},
		{"labels", db.LabelCount},
		{"keys", db.KeyCount},
		{"colors", db.ColorCount},
		{"artwork", db.ArtworkCount},
		{"playlists", db.PlaylistCount},
	} {
		n, err := c.count()
		if err != nil {
			return err
		}
		fmt.Printf("%-10s %d\n", c.name, n)
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "cratedig:", err)
	os.Exit(1)
}
