package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// catalogEntry keeps the upstream record as-is apart from the fields used for filtering.
type catalogEntry struct {
	Type   string
	Genres []string
	Raw    json.RawMessage
}

func (e *catalogEntry) UnmarshalJSON(data []byte) error {
	type fields struct {
		Type   string   `json:"type"`
		Genres []string `json:"genres"`
	}
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	e.Type, e.Genres = f.Type, f.Genres
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type searchResponse struct {
	Rows           int               `json:"rows"`
	NumFound       int               `json:"numFound"`
	Results        []json.RawMessage `json:"results"`
	NextCursorMark string            `json:"nextCursorMark"`
}

func main() {
	var (
		port   = flag.String("port", "9099", "port to listen on")
		data   = flag.String("data", "cmd/catalog-mock/mock-catalog.json", "path to mock data file")
		apiKey = flag.String("key", "", "required x-rapidapi-key value (empty accepts any)")
		logReq = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var entries []catalogEntry
	if err := json.Unmarshal(file, &entries); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	addr := ":" + *port
	log.Printf("mock catalog listening on %s with %d entries", addr, len(entries))
	var handler http.Handler = newMux(entries, *apiKey)
	if *logReq {
		handler = logRequests(handler)
	}
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newMux(entries []catalogEntry, apiKey string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/imdb/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if apiKey != "" && r.Header.Get("x-rapidapi-key") != apiKey {
			http.Error(w, `{"message":"You are not subscribed to this API."}`, http.StatusForbidden)
			return
		}

		query := r.URL.Query()
		kind := query.Get("type")
		genre := query.Get("genre")
		rows, err := strconv.Atoi(query.Get("rows"))
		if err != nil || rows <= 0 {
			rows = 25
		}

		resp := searchResponse{Results: []json.RawMessage{}}
		for _, entry := range entries {
			if kind != "" && !strings.EqualFold(entry.Type, kind) {
				continue
			}
			if genre != "" && !hasGenre(entry.Genres, genre) {
				continue
			}
			resp.NumFound++
			if len(resp.Results) < rows {
				resp.Results = append(resp.Results, entry.Raw)
			}
		}
		resp.Rows = len(resp.Results)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return mux
}

func hasGenre(genres []string, want string) bool {
	for _, g := range genres {
		if strings.EqualFold(g, want) {
			return true
		}
	}
	return false
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.RequestURI())
		next.ServeHTTP(w, r)
	})
}
