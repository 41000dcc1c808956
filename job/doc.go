// Package job defines the typed job registration API and the wire
// envelope used to carry a job's name, parameters, and retry bookkeeping
// through the opaque buffer a driver.Driver persists.
//
// # Defining a job
//
// Use [Definition] with a typed handler. The payload is JSON-encoded at
// push time and decoded back before the handler runs:
//
//	sendEmail := job.NewDefinition("send-email",
//	    func(ctx job.Context, input EmailInput) error {
//	        return mailer.Send(ctx, input.To, input.Subject, input.Body)
//	    },
//	    job.WithMaxRetryCount(5),
//	)
//
// # Registry
//
// [Registry] maps job names to type-erased definitions. Register
// definitions once at startup, before starting a worker.Pool:
//
//	reg := job.NewRegistry()
//	job.RegisterDefinition(reg, sendEmail)
//
// [Registry.Decode] turns an opaque buffer, as handed back by a driver's
// iterator, into an [Invocation] ready to run.
package job
