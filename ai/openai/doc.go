// Package openai implements the ai.Embedder interface against
// OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM).
//
// The implementation uses langchaingo's openai client and embedding wrapper,
// so any endpoint speaking the /v1/embeddings protocol works unchanged.
package openai
