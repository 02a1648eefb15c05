package amazon

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// IO is how the auth flow talks to the human operator. Prompt blocks until
// input arrives, captcha and OTP solving is human-in-the-loop. Embedders
// replace this to drive the flow from somewhere other than a console.
type IO interface {
	Echo(msg string)
	Prompt(msg string) (string, error)
}

// ConsoleIO reads from stdin and writes to stdout.
type ConsoleIO struct{}

func (ConsoleIO) Echo(msg string) {
	fmt.Println(msg)
}

func (ConsoleIO) Prompt(msg string) (string, error) {
	fmt.Printf("%s: ", msg)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptNonEmpty re-prompts until the operator provides a non-empty value.
func promptNonEmpty(io IO, msg string) (string, error) {
	for {
		val, err := io.Prompt(msg)
		if err != nil {
			return "", err
		}
		val = strings.TrimSpace(val)
		if val != "" {
			return val, nil
		}
		io.Echo("a value is required")
	}
}
