// Package bulkload loads batches of interlinked records into a store that
// checks every reference and every cardinality when a record is created.
//
// The records of a batch may reference each other in cycles. The store cannot
// accept a cycle one record at a time, so the loader removes ("stashes") just
// enough flexible values to make the batch acyclic, creates the records in
// dependency order, and writes the stashed values back once every target
// exists.
//
// # Running a Batch
//
//	records, err := record.LoadBatch("books.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	schema, err := ontology.LoadSchema("schema.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := httpapi.New(httpapi.Options{BaseURL: "http://localhost:3333"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := bulkload.Run(ctx, client, records, schema,
//		bulkload.WithConcurrency(8),
//		bulkload.WithLogger(logger),
//	)
//	if err != nil {
//		log.Fatal(err) // rejected or cancelled
//	}
//	for _, p := range res.Problems {
//		fmt.Println(p.RecordID, p.Property, p.Kind, p.Err)
//	}
//
// # Failure Model
//
// A schema whose reference cycles hold a mandatory property, or a batch whose
// cycles cannot be broken, is rejected before any call reaches the store.
// Failures of single records do not stop the run. A record the store refuses
// is reported as failed, and every record depending on it as blocked.
// Transient failures are retried with exponential backoff.
//
// # Resuming
//
// With a checkpoint store (see package checkpoint) every created record and
// every written-back value is saved under a batch key. Running the same batch
// again with the same key skips what already reached the store.
package bulkload
