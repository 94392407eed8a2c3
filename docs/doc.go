// Package docs provides generated OpenAPI documentation.
//
// Popsci API
//
//	@title			Popsci API
//	@version		1.0
//	@description	Turns research papers into illustrated popular-science articles.
//	@description	Submit a paper reference, poll the task, and download the artifacts.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/popsci
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/popsci/serve.go -o ./swagger --parseDependency --parseInternal
