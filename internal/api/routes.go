package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	tracks := s.router.Group("/tracks")
	{
		tracks.GET("", s.tracksHandler.ListTracks)
		tracks.GET("/count", s.tracksHandler.GetCounts)
	}

	s.router.GET("/motion", s.tracksHandler.GetMotion)

	stream := s.router.Group("/stream")
	{
		stream.GET("/ws", s.streamHandler.Subscribe)
		stream.GET("/frame", s.streamHandler.GetLatestFrame)
		stream.GET("/stats", s.streamHandler.GetStreamStats)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.statsHandler.GetStats)
		system.GET("/debug", s.statsHandler.GetDebugInfo)
	}
}
