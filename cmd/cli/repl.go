package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"homesync-go/internal/service"
)

var (
	userStyle      = pterm.NewStyle(pterm.FgGreen, pterm.Bold)
	assistantStyle = pterm.NewStyle(pterm.FgCyan)
)

// 输入这些命令时退出
var exitCommands = map[string]bool{"/exit": true, "/quit": true}

type repl struct {
	chat      service.ChatService
	sessionID string
	out       io.Writer
}

// loop 逐行读取输入直到 EOF 或退出命令。
func (r *repl) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, userStyle.Sprint("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := scanner.Text()
		if exitCommands[strings.TrimSpace(line)] {
			return nil
		}
		if err := r.ask(ctx, line); err != nil {
			return err
		}
	}
}

func (r *repl) ask(ctx context.Context, question string) error {
	reply, err := r.chat.Ask(ctx, r.sessionID, question)
	if errors.Is(err, service.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		return err
	}
	r.printAssistant(reply.Content)
	return nil
}

func (r *repl) printAssistant(text string) {
	fmt.Fprintln(r.out, assistantStyle.Sprint("AI: ")+text)
}
