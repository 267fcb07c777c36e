// Package nlquery runs the natural-language ingestion and question answering
// pipeline in process, backed by Valkey, Redis or an in-memory index.
//
// Lines of free text are structured into records by a generative model,
// flattened into the collection schema and indexed. Questions are translated
// into schema-checked filters, with a free-text fallback, and answered from
// the matching documents with citations.
//
//	client, _ := nlquery.New(ctx,
//	    nlquery.WithValkey("localhost:6379", ""),
//	    nlquery.WithOpenAI("http://localhost:11434/v1", ""),
//	    nlquery.WithModels("gemma3:4b"),
//	)
//	defer client.Close()
//
//	_, _ = client.Ingest(ctx, nlquery.IngestRequest{Lines: []string{
//	    "Balu is a boy. He likes blue color and curd rice.",
//	}})
//	res, _ := client.Query(ctx, nlquery.QueryRequest{Question: "which boys like blue?"})
//	fmt.Println(res.Answer.Text, res.Answer.CitedIDs)
package nlquery
