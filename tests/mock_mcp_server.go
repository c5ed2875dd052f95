//go:build ignore

// Command mock_mcp_server is a minimal newline-delimited JSON-RPC 2.0
// stdio server used as the child process in integration tests: it
// answers tools/call and a few fixed methods without touching a real
// filesystem or network. Built on demand by TestIntegration via `go run`.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

func main() {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req map[string]interface{}
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		method, _ := req["method"].(string)
		id := req["id"]

		var result interface{}
		switch method {
		case "tools/call":
			params, _ := req["params"].(map[string]interface{})
			toolName, _ := params["name"].(string)
			args, _ := params["arguments"].(map[string]interface{})
			if path, ok := args["path"].(string); ok {
				result = map[string]interface{}{"tool": toolName, "contents": "file contents of " + path}
			} else {
				result = map[string]interface{}{"tool": toolName, "output": "ok"}
			}
		case "initialize":
			result = map[string]interface{}{"protocolVersion": "2024-11-05"}
		default:
			result = map[string]interface{}{"echo": method}
		}

		if id == nil {
			continue // notifications get no response
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result}
		b, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%s\n", b)
		out.Flush()
	}
}
