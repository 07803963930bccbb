// Package api exposes scraping and crawl jobs over HTTP.
//
// Routes:
//
//	POST   /api/scrape                single page
//	POST   /api/scrape/batch          fixed list of pages
//	POST   /api/crawl                 start an asynchronous crawl (202)
//	GET    /api/crawl                 list crawl jobs
//	GET    /api/crawl/{id}            job status, 404 for an unknown id
//	GET    /api/crawl/{id}/result     full job, 409 until completed
//	DELETE /api/crawl/{id}            delete a job
//	GET    /health                    liveness and limiter counters
//
// Request validation and clamping of crawl options happen here, so the
// engine and job manager receive bounded values.
package api
