// ABOUTME: bridge subcommand exposing the engine over stdin and stdout
// ABOUTME: Hosts send JSON action requests and receive replies and events as JSON lines
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Drive the engine with JSON lines on stdin",
	Long: `Reads one request per line, {"id": 1, "action": "loadMedia", "args": [...]},
and writes replies {"id": 1, "result": ..., "error": ...} and events
{"event": [type, args]} to stdout.`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

// bridgeRequest is one line read from the host
type bridgeRequest struct {
	ID     int64             `json:"id"`
	Action string            `json:"action"`
	Args   []json.RawMessage `json:"args"`
}

// bridgeReply is one line written to the host
type bridgeReply struct {
	ID     int64           `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cast.Error     `json:"error,omitempty"`
	More   bool            `json:"more,omitempty"`
	Event  *cast.Event     `json:"event,omitempty"`
}

// bridgeDrainTimeout bounds the wait for replies still owed at EOF
const bridgeDrainTimeout = 5 * time.Second

// lineWriter serializes concurrent writes of JSON lines
type lineWriter struct {
	mu      sync.Mutex
	enc     *json.Encoder
	pending sync.WaitGroup
}

func (w *lineWriter) write(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		log.Printf("Bridge write failed: %v", err)
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()

	return serveBridge(rt.caster, os.Stdin, os.Stdout)
}

// serveBridge runs requests from in until EOF
func serveBridge(c *cast.Caster, in io.Reader, out io.Writer) error {
	w := &lineWriter{enc: json.NewEncoder(out)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range c.Events() {
			w.write(bridgeReply{Event: &ev})
		}
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		handleBridgeLine(c, line, w)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}

	c.Close()

	// Close resolves every outstanding operation, so the owed replies
	// arrive shortly after.
	drained := make(chan struct{})
	go func() {
		w.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(bridgeDrainTimeout):
		log.Printf("Bridge exiting with replies outstanding")
	}

	<-done
	return nil
}

func handleBridgeLine(c *cast.Caster, line []byte, w *lineWriter) {
	var req bridgeRequest
	if err := json.Unmarshal(line, &req); err != nil {
		w.write(bridgeReply{Error: &cast.Error{Code: cast.CodeInvalidParameter, Description: err.Error()}})
		return
	}

	w.pending.Add(1)
	handled := c.Execute(req.Action, req.Args, func(resp cast.Response) {
		w.write(bridgeReply{ID: req.ID, Result: resp.Payload, Error: resp.Err, More: resp.Keep})
		if !resp.Keep {
			w.pending.Done()
		}
	})
	if !handled {
		w.pending.Done()
		w.write(bridgeReply{ID: req.ID, Error: &cast.Error{
			Code:        cast.CodeInvalidParameter,
			Description: fmt.Sprintf("unknown action %q", req.Action),
		}})
	}
}
