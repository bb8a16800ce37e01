// Package lib provides a Go SDK to embed the agentgw gateway.
//
// It runs wrapped tool tasks with the same profile resolution, execution
// homes and output handling as the agentgw binary, and gives access to the
// sandboxed workspace. It is useful to drive the wrapped tool from Go
// programs without speaking JSON-RPC.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{
//	    Workdir: "/srv/workspace",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := client.RunTask(ctx, lib.RunTaskOpts{
//	    Prompt:  "add a README",
//	    Profile: "fast",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Stdout)
//
// # Profiles
//
// Profiles are read from the catalog on every task. When the catalog can't
// be read the fallback profiles are used, [ProfileList.Source] tells which:
//
//	profiles, _ := client.Profiles(ctx)
//	for _, p := range profiles.Profiles {
//	    fmt.Println(p.ID, p.Model, p.Isolated)
//	}
//
// # Files
//
// File operations are confined to [Config].Workdir:
//
//	client.WriteFile(ctx, "notes/todo.md", "- ship it")
//	content, _ := client.ReadFile(ctx, "notes/todo.md")
//	entries, _ := client.ListFiles(ctx, "notes")
//
// Paths escaping the workdir fail with [ErrOutOfBounds].
//
// # Serving
//
// [Client.Serve] runs the same line-delimited JSON-RPC server as
// `agentgw serve` over any reader and writer.
//
// # Errors
//
// Errors can be checked with [errors.Is] against [ErrNotFound],
// [ErrNotValid], [ErrUnknownProfile] and [ErrOutOfBounds].
package lib
