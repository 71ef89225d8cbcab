package bot

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// ServeStdio reads one message per line from in and writes each reply to out.
// A line that opens a ``` block continues the message until the block closes.
func (b *Bot) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	br := bufio.NewReader(in)
	bw := bufio.NewWriter(out)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := readMessage(br)
		if msg != "" {
			if resp, ok := b.Handle(ctx, msg); ok {
				if _, werr := bw.WriteString(resp.Text + "\n"); werr != nil {
					return werr
				}
				if werr := bw.Flush(); werr != nil {
					return werr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func readMessage(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	fences := 0
	for {
		line, err := br.ReadString('\n')
		sb.WriteString(line)
		if err != nil {
			return strings.TrimSpace(sb.String()), err
		}
		fences += strings.Count(line, "```")
		if fences%2 == 0 {
			return strings.TrimSpace(sb.String()), nil
		}
	}
}
