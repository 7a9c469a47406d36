// Package sensei provides a supervisor-orchestrated multi-agent tutoring
// backend.
//
// A tutoring query is classified by intent (explain, solve, grade, analyze)
// and routed to one of four specialist agents, each backed by an LLM provider
// chain with retry and ordered fallback. Responses are grounded by retrieval
// from a vector store and served from a semantic cache when a near-duplicate
// query has already been answered for the same tenant.
//
// # Quick Start
//
// Install sensei:
//
//	go install github.com/kadirpekel/sensei/cmd/sensei@latest
//
// Create a configuration:
//
//	llm:
//	  providers:
//	    - type: openai
//	      model: gpt-4o-mini
//	      api_key: ${OPENAI_API_KEY}
//	    - type: ollama
//	      model: llama3.2
//
//	cache:
//	  similarity_threshold: 0.92
//
// Start the server:
//
//	sensei serve --config sensei.yaml
//
// # Package Layout
//
//   - pkg/supervisor: intent classification and orchestration
//   - pkg/agents: Content, Solver, Grader and Analyst specialists
//   - pkg/cache: embedding-similarity response cache
//   - pkg/retrieval: grounding passage retrieval
//   - pkg/llms: LLM providers and the fallback chain
//   - pkg/embedders: embedding providers
//   - pkg/vector: vector store providers (chromem, qdrant)
package sensei
