// Package studybuddy is an embeddable exam-answer broker: it gates every
// question behind a per-category daily allowance, composes a university-style
// prompt, calls a generative provider and keeps the conversation.
//
// Two answer types are supported:
//   - ShortForm: concise 2-mark answers
//   - LongForm: structured 16-mark answers
//
// # Usage
//
//	client, _ := studybuddy.New(ctx,
//	    studybuddy.WithGemini(os.Getenv("GEMINI_API_KEY")),
//	    studybuddy.WithRedis("localhost:6379", ""),
//	    studybuddy.WithSession("device-42"),
//	)
//	defer client.Close()
//
//	ans, err := client.Ask(ctx, "Explain virtual memory.", studybuddy.LongForm)
//	switch {
//	case errors.Is(err, studybuddy.ErrQuotaExceeded):
//	    // show the daily limit notice
//	case err != nil:
//	    // provider failure, the allowance was not consumed
//	}
//	fmt.Println(ans.Text, client.Remaining(studybuddy.LongForm))
package studybuddy
