// Command protoschema writes JSON schemas for every frame the game server
// accepts or sends, for client code generation and contract tests.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/driftline/driftline/internal/protocol"
)

type message struct {
	name        string
	description string
	value       any
}

var clientMessages = []message{
	{protocol.TypeInput, "Movement and fire intent for the next tick.", new(protocol.Input)},
	{protocol.TypePing, "Latency check echoed back as pong.", new(protocol.Ping)},
	{protocol.TypeStart, "Request to begin the match from the lobby.", new(protocol.Start)},
}

var serverMessages = []message{
	{protocol.TypeState, "Authoritative world snapshot, sent once per tick while running.", new(protocol.State)},
	{protocol.TypeJoined, "A player joined the room.", new(protocol.Joined)},
	{protocol.TypeLeft, "A player left the room.", new(protocol.Left)},
	{protocol.TypeGameStart, "The match started.", new(protocol.GameStart)},
	{protocol.TypeGameEnd, "The match finished, with final scores.", new(protocol.GameEnd)},
	{protocol.TypeError, "A request failed or the room is closing.", new(protocol.Error)},
	{protocol.TypePong, "Reply to ping.", new(protocol.Pong)},
}

// direction groups the frames one side of the connection sends. Each
// direction becomes its own schema file.
type direction struct {
	file     string
	title    string
	messages []message
}

var directions = []direction{
	{"client.schema.json", "Client frames", clientMessages},
	{"server.schema.json", "Server frames", serverMessages},
}

func main() {
	var dir string
	flag.StringVar(&dir, "dir", "", "directory to write client.schema.json and server.schema.json into")
	flag.Parse()

	if dir == "" {
		fmt.Fprintln(os.Stderr, "-dir is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", dir, err)
		os.Exit(1)
	}

	for _, d := range directions {
		data, err := render(d)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", d.file, err)
			os.Exit(1)
		}
		path := filepath.Join(dir, d.file)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d frames)\n", path, len(d.messages))
	}
}

// render reflects every frame of d and wraps them in one document keyed by
// the frame's type discriminator.
func render(d direction) ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	frames := make(map[string]*jsonschema.Schema, len(d.messages))
	for _, m := range d.messages {
		schema := reflector.Reflect(m.value)
		schema.Title = m.name
		schema.Description = m.description
		frames[m.name] = schema
	}

	doc := struct {
		Title  string                        `json:"title"`
		Frames map[string]*jsonschema.Schema `json:"frames"`
	}{d.title, frames}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return append(data, '\n'), nil
}
