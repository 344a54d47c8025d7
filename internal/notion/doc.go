// Package notion talks to Notion: the public OAuth endpoints used during
// sign-in and the REST API used by the MCP tools.
//
// Sign-in is split in two halves. AuthorizeURL sends the browser to Notion
// with the MCP client's request packed into the state parameter, and
// OAuthClient.Exchange turns the returned code into a Credential. The token
// exchange is a single request without retries because authorization codes
// are single-use.
//
// API calls go through a retrying client. Rate-limited responses (429) are
// returned to the caller rather than retried.
package notion
