package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paperreel/internal/chat"
	"paperreel/internal/models"
)

func runAsk(args []string) error {
	fs, e := newFlagSet("ask")
	job := fs.String("job", "", "job id whose merged video the question is about")
	last := fs.Bool("last", false, "use the last uploaded job")
	at := fs.Float64("at", 0, "playback position in seconds")
	timeout := fs.Duration("timeout", 60*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return errors.New(`usage: paperreel ask [--job ID] "question"`)
	}
	jobID, err := e.resolveJob(*job, *last)
	if err != nil {
		return err
	}

	var clip *models.VideoClip
	if videos := e.store().Videos(jobID); len(videos) > 0 {
		clip = &videos[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	conv := chat.NewConversation()
	msg, _ := conv.Send(ctx, e.client(), question, clip, *at)

	if *e.jsonOut {
		return printJSON(msg)
	}
	fmt.Fprintln(stdout, msg.Content)
	return nil
}
