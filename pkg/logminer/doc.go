// Package logminer mines message patterns out of logging call sites and uses
// them to parse raw log lines back into structured records.
//
// This package allows you to:
//   - Compile message templates such as "Application {} has been installed"
//     into regular expressions with one capture group per placeholder
//   - Keep compiled statements in a class-scoped [Repository]
//   - Match log messages against the statements of their class, falling
//     back to the [DefaultClass] bucket
//   - Parse or follow log files whose lines have six "|"-delimited fields
//
// # Basic Usage
//
// To parse every log file in a directory:
//
//	repo, err := pattern.LoadRepository("patterns.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for rec, err := range logminer.ParseDir(ctx, "logs", logminer.WithRepository(repo)) {
//	    if err != nil {
//	        log.Printf("error: %v", err)
//	        continue
//	    }
//	    fmt.Println(rec.Class, rec.Pattern, rec.Captures)
//	}
//
// To match a single message:
//
//	rec, ok := repo.Match("Application foo has been installed", "ApplicationManager")
//	if ok && rec.Matched() {
//	    fmt.Println(rec.Captures) // [foo]
//	}
//
// # Matching Rules
//
// Patterns must match the whole message. Candidates are tried in insertion
// order and the first match wins. When a class has candidates but none
// matches, [Repository.Match] still returns a record carrying the message;
// [ParsedLog.Matched] tells the two cases apart.
//
// # Custom Parsers
//
// Implement the [Parser] interface for custom log parsing, and use
// [ParserChain] to try several repositories in turn:
//
//	chain := &logminer.ParserChain{
//	    Parsers: []logminer.Parser{logminer.NewLineParser(core), logminer.NewLineParser(plugins)},
//	}
//
// # Pattern Files
//
// Repositories are persisted by the [pattern] subpackage and produced from
// source trees by the [extract] subpackage.
package logminer
