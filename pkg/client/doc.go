// Package lostmatch is a Go client for the lostmatch admin API.
//
//	c, _ := lostmatch.New("http://localhost:8080", lostmatch.WithAPIKey(key))
//	run, _ := c.Matches().Run(ctx, lostmatch.KindLost, "lost-42")
//	for _, m := range run.Persisted {
//	    fmt.Println(m.FoundReportID, m.Score)
//	}
//
//	st, _ := c.Periodic().Status(ctx, "user-7")
//	_ = c.Periodic().Set(ctx, "user-7", lostmatch.Settings{Enabled: ptr(true)})
//
// Failed calls return *APIError. Use errors.Is with the sentinels in this
// package to branch on the cause.
package lostmatch
