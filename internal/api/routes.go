package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.GatewayInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	apiGroup := s.router.Group("/api")

	cameras := apiGroup.Group("/cameras")
	{
		cameras.GET("", s.cameraHandler.ListCameras)
		cameras.GET("/:id", s.cameraHandler.GetCamera)
		cameras.POST("/:id/open", s.cameraHandler.OpenCamera)
		cameras.POST("/:id/close", s.cameraHandler.CloseCamera)
		cameras.GET("/:id/status", s.cameraHandler.CameraStatus)
	}

	faces := apiGroup.Group("/faces")
	{
		faces.GET("", s.facesHandler.ListPersons)
		faces.GET("/stats", s.facesHandler.Stats)
		faces.POST("/reload", s.facesHandler.ReloadGallery)
		faces.POST("/enroll/capture", s.facesHandler.EnrollFromCapture)
		faces.GET("/:person_id", s.facesHandler.GetPerson)
		faces.PUT("/:person_id", s.facesHandler.UpdatePerson)
		faces.DELETE("/:person_id", s.facesHandler.DeletePerson)
	}

	stream := s.router.Group("/stream")
	{
		stream.GET("/:id", s.streamHandler.Stream)
		stream.GET("/:id/snapshot", s.streamHandler.Snapshot)
	}
}
