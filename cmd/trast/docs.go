package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           trast API
// @version         1.0
// @description     HTTP API for single-model tensor inference.
//
// @contact.name   trast maintainers
// @contact.url    https://github.com/your-org/trast
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
