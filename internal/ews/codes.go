package ews

import (
	"slices"
	"sort"
	"strings"
	"sync"
)

// ErrorKind classifies a failed EWS request. Server-reported kinds mirror the
// ResponseCode values published by Exchange; the trailing kinds are produced
// locally by the transport.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindAccessDenied
	KindAccountDisabled
	KindAddDelegatesFailed
	KindAddressSpaceNotFound
	KindADOperation
	KindADSessionFilter
	KindADUnavailable
	KindAffectedTaskOccurrencesRequired
	KindAttachmentSizeLimitExceeded
	KindAutoDiscoverFailed
	KindAvailabilityConfigNotFound
	KindBatchProcessingStopped
	KindCalendarCannotMoveOrCopyOccurrence
	KindCalendarCannotUpdateDeletedItem
	KindCalendarCannotUseIdForOccurrenceId
	KindCalendarCannotUseIdForRecurringMasterId
	KindCalendarDurationIsTooLong
	KindCalendarEndDateIsEarlierThanStartDate
	KindCalendarFolderIsInvalidForCalendarView
	KindCalendarInvalidDayForTimeChangePattern
	KindCalendarInvalidDayForWeeklyRecurrence
	KindCalendarInvalidPropertyState
	KindCalendarInvalidRecurrence
	KindCalendarInvalidTimeZone
	KindCalendarIsDelegatedForAccept
	KindCalendarIsDelegatedForDecline
	KindCalendarIsDelegatedForRemove
	KindCalendarIsDelegatedForTentative
	KindCalendarIsNotOrganizer
	KindCalendarIsOrganizerForAccept
	KindCalendarIsOrganizerForDecline
	KindCalendarIsOrganizerForRemove
	KindCalendarIsOrganizerForTentative
	KindCalendarMeetingRequestIsOutOfDate
	KindCalendarOccurrenceIndexIsOutOfRecurrenceRange
	KindCalendarOccurrenceIsDeletedFromRecurrence
	KindCalendarOutOfRange
	KindCalendarViewRangeTooBig
	KindCannotCreateCalendarItemInNonCalendarFolder
	KindCannotCreateContactInNonContactFolder
	KindCannotCreatePostItemInNonMailFolder
	KindCannotCreateTaskInNonTaskFolder
	KindCannotDeleteObject
	KindCannotDeleteTaskOccurrence
	KindCannotOpenFileAttachment
	KindCannotSetCalendarPermissionOnNonCalendarFolder
	KindCannotSetNonCalendarPermissionOnCalendarFolder
	KindCannotSetPermissionUnknownEntries
	KindCannotUseFolderIdForItemId
	KindCannotUseItemIdForFolderId
	KindChangeKeyRequired
	KindChangeKeyRequiredForWriteOperations
	KindConnectionFailed
	KindContentConversionFailed
	KindCorruptData
	KindCreateItemAccessDenied
	KindCreateManagedFolderPartialCompletion
	KindCreateSubfolderAccessDenied
	KindCrossMailboxMoveCopy
	KindDataSizeLimitExceeded
	KindDataSourceOperation
	KindDelegateAlreadyExists
	KindDelegateCannotAddOwner
	KindDelegateMissingConfiguration
	KindDelegateNoUser
	KindDelegateValidationFailed
	KindDeleteDistinguishedFolder
	KindDistinguishedUserNotSupported
	KindDuplicateInputFolderNames
	KindDuplicateUserIdsSpecified
	KindEmailAddressMismatch
	KindEventNotFound
	KindExpiredSubscription
	KindFolderCorrupt
	KindFolderExists
	KindFolderNotFound
	KindFolderPropertRequestFailed
	KindFolderSave
	KindFolderSaveFailed
	KindFolderSavePropertyError
	KindFreeBusyGenerationFailed
	KindImpersonateUserDenied
	KindImpersonationDenied
	KindImpersonationFailed
	KindIncorrectSchemaVersion
	KindIncorrectUpdatePropertyCount
	KindIndividualMailboxLimitReached
	KindInsufficientResources
	KindInternalServerError
	KindInternalServerTransientError
	KindInvalidAccessLevel
	KindInvalidAttachmentId
	KindInvalidAttachmentSubfilter
	KindInvalidAttachmentSubfilterTextFilter
	KindInvalidAuthorizationContext
	KindInvalidChangeKey
	KindInvalidClientSecurityContext
	KindInvalidCompleteDate
	KindInvalidCrossForestCredentials
	KindInvalidDelegatePermission
	KindInvalidDelegateUserId
	KindInvalidExchangeImpersonationHeaderData
	KindInvalidExcludesRestriction
	KindInvalidExtendedProperty
	KindInvalidExtendedPropertyValue
	KindInvalidFolderId
	KindInvalidFolderTypeForOperation
	KindInvalidFractionalPagingParameters
	KindInvalidFreeBusyViewType
	KindInvalidId
	KindInvalidIdEmpty
	KindInvalidIdMalformed
	KindInvalidIdMalformedEwsLegacyIdFormat
	KindInvalidIdMonikerTooLong
	KindInvalidIdNotAnItemAttachmentId
	KindInvalidIdReturnedByResolveNames
	KindInvalidIdStoreObjectIdTooLong
	KindInvalidIdTooManyAttachmentLevels
	KindInvalidIndexedPagingParameters
	KindInvalidItemForOperationAcceptItem
	KindInvalidItemForOperationCancelItem
	KindInvalidItemForOperationCreateItemAttachment
	KindInvalidItemForOperationCreateItem
	KindInvalidItemForOperationDeclineItem
	KindInvalidItemForOperationExpandDL
	KindInvalidItemForOperationRemoveItem
	KindInvalidItemForOperationSendItem
	KindInvalidItemForOperationTentative
	KindInvalidManagedFolderProperty
	KindInvalidManagedFolderQuota
	KindInvalidManagedFolderSize
	KindInvalidMergedFreeBusyInterval
	KindInvalidNameForNameResolution
	KindInvalidNetworkServiceContext
	KindInvalidOperation
	KindInvalidPagingMaxRows
	KindInvalidParentFolder
	KindInvalidPercentCompleteValue
	KindInvalidPermissionSettings
	KindInvalidPropertyAppend
	KindInvalidPropertyDelete
	KindInvalidPropertyForExists
	KindInvalidPropertyForOperation
	KindInvalidPropertyRequest
	KindInvalidPropertySet
	KindInvalidPropertyUpdateSentMessage
	KindInvalidPullSubscriptionId
	KindInvalidPushSubscriptionUrl
	KindInvalidRecipients
	KindInvalidRecipientSubfilter
	KindInvalidRecipientSubfilterComparison
	KindInvalidRecipientSubfilterOrder
	KindInvalidRecipientSubfilterTextFilter
	KindInvalidReferenceItem
	KindInvalidRequest
	KindInvalidRoutingType
	KindInvalidScheduledOofDuration
	KindInvalidSecurityDescriptor
	KindInvalidSendItemSaveSettings
	KindInvalidSerializedAccessToken
	KindInvalidSid
	KindInvalidServerVersion
	KindInvalidSmtpAddress
	KindInvalidSubscription
	KindInvalidSubscriptionRequest
	KindInvalidSyncStateData
	KindInvalidTimeInterval
	KindInvalidUserInfo
	KindInvalidUserOofSettings
	KindInvalidUserPrincipalName
	KindInvalidUserSid
	KindInvalidValueForProperty
	KindInvalidWatermark
	KindIrresolvableConflict
	KindItemCorrupt
	KindItemNotFound
	KindItemPropertyRequestFailed
	KindItemSave
	KindItemSavePropertyError
	KindLogonAsNetworkServiceFailed
	KindMailboxConfiguration
	KindMailboxDataArrayEmpty
	KindMailboxDataArrayTooBig
	KindMailboxLogonFailed
	KindMailboxMoveInProgress
	KindMailboxStoreUnavailable
	KindMailRecipientNotFound
	KindManagedFolderAlreadyExists
	KindManagedFolderNotFound
	KindManagedFoldersRootFailure
	KindMeetingSuggestionGenerationFailed
	KindMessageDispositionRequired
	KindMessageSizeExceeded
	KindMimeContentConversionFailed
	KindMimeContentInvalid
	KindMimeContentInvalidBase64String
	KindMissingArgument
	KindMissingEmailAddress
	KindMissingEmailAddressForManagedFolder
	KindMissingInformationEmailAddress
	KindMissingInformationReferenceItemId
	KindMissingItemForCreateItemAttachment
	KindMissingManagedFolderId
	KindMissingRecipients
	KindMissingUserIdInformation
	KindMoreThanOneAccessModeSpecified
	KindMoveCopyFailed
	KindMoveDistinguishedFolder
	KindNameResolutionMultipleResults
	KindNameResolutionNoMailbox
	KindNameResolutionNoResults
	KindNoCalendar
	KindNoDestinationCASDueToKerberosRequirements
	KindNoDestinationCASDueToSSLRequirements
	KindNoDestinationCASDueToVersionMismatch
	KindNoFolderClassOverride
	KindNoFreeBusyAccess
	KindNonExistentMailbox
	KindNonPrimarySmtpAddress
	KindNoPropertyTagForCustomProperties
	KindNoRespondingCASInDestinationSite
	KindNotDelegate
	KindNotEnoughMemory
	KindObjectTypeChanged
	KindOccurrenceCrossingBoundary
	KindOccurrenceTimeSpanTooBig
	KindOperationNotAllowedWithPublicFolderRoot
	KindParentFolderNotFound
	KindPasswordChangeRequired
	KindPasswordExpired
	KindPropertyUpdate
	KindProxiedSubscriptionCallFailure
	KindProxyGroupSidLimitExceeded
	KindProxyRequestNotAllowed
	KindProxyRequestProcessingFailed
	KindPublicFolderRequestProcessingFailed
	KindPublicFolderServerNotFound
	KindQueryFilterTooLong
	KindQuotaExceeded
	KindReadEventsFailed
	KindReadReceiptNotPending
	KindRecurrenceEndDateTooBig
	KindRecurrenceHasNoOccurrence
	KindRemoveDelegatesFailed
	KindRequestStreamTooBig
	KindRequiredPropertyMissing
	KindResolveNamesInvalidFolderType
	KindResolveNamesOnlyOneContactsFolderAllowed
	KindResponseSchemaValidation
	KindRestrictionTooLong
	KindRestrictionTooComplex
	KindResultSetTooBig
	KindSavedItemFolderNotFound
	KindSchemaValidation
	KindSearchFolderNotInitialized
	KindSendAsDenied
	KindSendMeetingCancellationsRequired
	KindSendMeetingInvitationsOrCancellationsRequired
	KindSendMeetingInvitationsRequired
	KindSentMeetingRequestUpdate
	KindSentTaskRequestUpdate
	KindServerBusy
	KindServiceDiscoveryFailed
	KindStaleObject
	KindSubscriptionAccessDenied
	KindSubscriptionDelegateAccessNotSupported
	KindSubscriptionNotFound
	KindSyncFolderNotFound
	KindTimeIntervalTooBig
	KindTimeoutExpired
	KindTimeZone
	KindToFolderNotFound
	KindTokenSerializationDenied
	KindUnsupportedCulture
	KindUnsupportedMapiPropertyType
	KindUnsupportedMimeConversion
	KindUnsupportedPathForQuery
	KindUnsupportedPathForSortGroup
	KindUnsupportedQueryFilter
	KindUnsupportedRecurrence
	KindUnsupportedTypeForConversion
	KindUpdateDelegatesFailed
	KindUpdatePropertyMismatch
	KindVirusDetected
	KindVirusMessageDeleted
	KindWin32InteropError

	// Locally synthesized.
	KindNoResponse
	KindCancelled
	KindUnknown
	KindAuthenticationFailed
)

var kindCodes = [...]string{
	KindAccessDenied: "ErrorAccessDenied",
	KindAccountDisabled: "ErrorAccountDisabled",
	KindAddDelegatesFailed: "ErrorAddDelegatesFailed",
	KindAddressSpaceNotFound: "ErrorAddressSpaceNotFound",
	KindADOperation: "ErrorADOperation",
	KindADSessionFilter: "ErrorADSessionFilter",
	KindADUnavailable: "ErrorADUnavailable",
	KindAffectedTaskOccurrencesRequired: "ErrorAffectedTaskOccurrencesRequired",
	KindAttachmentSizeLimitExceeded: "ErrorAttachmentSizeLimitExceeded",
	KindAutoDiscoverFailed: "ErrorAutoDiscoverFailed",
	KindAvailabilityConfigNotFound: "ErrorAvailabilityConfigNotFound",
	KindBatchProcessingStopped: "ErrorBatchProcessingStopped",
	KindCalendarCannotMoveOrCopyOccurrence: "ErrorCalendarCannotMoveOrCopyOccurrence",
	KindCalendarCannotUpdateDeletedItem: "ErrorCalendarCannotUpdateDeletedItem",
	KindCalendarCannotUseIdForOccurrenceId: "ErrorCalendarCannotUseIdForOccurrenceId",
	KindCalendarCannotUseIdForRecurringMasterId: "ErrorCalendarCannotUseIdForRecurringMasterId",
	KindCalendarDurationIsTooLong: "ErrorCalendarDurationIsTooLong",
	KindCalendarEndDateIsEarlierThanStartDate: "ErrorCalendarEndDateIsEarlierThanStartDate",
	KindCalendarFolderIsInvalidForCalendarView: "ErrorCalendarFolderIsInvalidForCalendarView",
	KindCalendarInvalidDayForTimeChangePattern: "ErrorCalendarInvalidDayForTimeChangePattern",
	KindCalendarInvalidDayForWeeklyRecurrence: "ErrorCalendarInvalidDayForWeeklyRecurrence",
	KindCalendarInvalidPropertyState: "ErrorCalendarInvalidPropertyState",
	KindCalendarInvalidRecurrence: "ErrorCalendarInvalidRecurrence",
	KindCalendarInvalidTimeZone: "ErrorCalendarInvalidTimeZone",
	KindCalendarIsDelegatedForAccept: "ErrorCalendarIsDelegatedForAccept",
	KindCalendarIsDelegatedForDecline: "ErrorCalendarIsDelegatedForDecline",
	KindCalendarIsDelegatedForRemove: "ErrorCalendarIsDelegatedForRemove",
	KindCalendarIsDelegatedForTentative: "ErrorCalendarIsDelegatedForTentative",
	KindCalendarIsNotOrganizer: "ErrorCalendarIsNotOrganizer",
	KindCalendarIsOrganizerForAccept: "ErrorCalendarIsOrganizerForAccept",
	KindCalendarIsOrganizerForDecline: "ErrorCalendarIsOrganizerForDecline",
	KindCalendarIsOrganizerForRemove: "ErrorCalendarIsOrganizerForRemove",
	KindCalendarIsOrganizerForTentative: "ErrorCalendarIsOrganizerForTentative",
	KindCalendarMeetingRequestIsOutOfDate: "ErrorCalendarMeetingRequestIsOutOfDate",
	KindCalendarOccurrenceIndexIsOutOfRecurrenceRange: "ErrorCalendarOccurrenceIndexIsOutOfRecurrenceRange",
	KindCalendarOccurrenceIsDeletedFromRecurrence: "ErrorCalendarOccurrenceIsDeletedFromRecurrence",
	KindCalendarOutOfRange: "ErrorCalendarOutOfRange",
	KindCalendarViewRangeTooBig: "ErrorCalendarViewRangeTooBig",
	KindCannotCreateCalendarItemInNonCalendarFolder: "ErrorCannotCreateCalendarItemInNonCalendarFolder",
	KindCannotCreateContactInNonContactFolder: "ErrorCannotCreateContactInNonContactFolder",
	KindCannotCreatePostItemInNonMailFolder: "ErrorCannotCreatePostItemInNonMailFolder",
	KindCannotCreateTaskInNonTaskFolder: "ErrorCannotCreateTaskInNonTaskFolder",
	KindCannotDeleteObject: "ErrorCannotDeleteObject",
	KindCannotDeleteTaskOccurrence: "ErrorCannotDeleteTaskOccurrence",
	KindCannotOpenFileAttachment: "ErrorCannotOpenFileAttachment",
	KindCannotSetCalendarPermissionOnNonCalendarFolder: "ErrorCannotSetCalendarPermissionOnNonCalendarFolder",
	KindCannotSetNonCalendarPermissionOnCalendarFolder: "ErrorCannotSetNonCalendarPermissionOnCalendarFolder",
	KindCannotSetPermissionUnknownEntries: "ErrorCannotSetPermissionUnknownEntries",
	KindCannotUseFolderIdForItemId: "ErrorCannotUseFolderIdForItemId",
	KindCannotUseItemIdForFolderId: "ErrorCannotUseItemIdForFolderId",
	KindChangeKeyRequired: "ErrorChangeKeyRequired",
	KindChangeKeyRequiredForWriteOperations: "ErrorChangeKeyRequiredForWriteOperations",
	KindConnectionFailed: "ErrorConnectionFailed",
	KindContentConversionFailed: "ErrorContentConversionFailed",
	KindCorruptData: "ErrorCorruptData",
	KindCreateItemAccessDenied: "ErrorCreateItemAccessDenied",
	KindCreateManagedFolderPartialCompletion: "ErrorCreateManagedFolderPartialCompletion",
	KindCreateSubfolderAccessDenied: "ErrorCreateSubfolderAccessDenied",
	KindCrossMailboxMoveCopy: "ErrorCrossMailboxMoveCopy",
	KindDataSizeLimitExceeded: "ErrorDataSizeLimitExceeded",
	KindDataSourceOperation: "ErrorDataSourceOperation",
	KindDelegateAlreadyExists: "ErrorDelegateAlreadyExists",
	KindDelegateCannotAddOwner: "ErrorDelegateCannotAddOwner",
	KindDelegateMissingConfiguration: "ErrorDelegateMissingConfiguration",
	KindDelegateNoUser: "ErrorDelegateNoUser",
	KindDelegateValidationFailed: "ErrorDelegateValidationFailed",
	KindDeleteDistinguishedFolder: "ErrorDeleteDistinguishedFolder",
	KindDistinguishedUserNotSupported: "ErrorDistinguishedUserNotSupported",
	KindDuplicateInputFolderNames: "ErrorDuplicateInputFolderNames",
	KindDuplicateUserIdsSpecified: "ErrorDuplicateUserIdsSpecified",
	KindEmailAddressMismatch: "ErrorEmailAddressMismatch",
	KindEventNotFound: "ErrorEventNotFound",
	KindExpiredSubscription: "ErrorExpiredSubscription",
	KindFolderCorrupt: "ErrorFolderCorrupt",
	KindFolderExists: "ErrorFolderExists",
	KindFolderNotFound: "ErrorFolderNotFound",
	KindFolderPropertRequestFailed: "ErrorFolderPropertRequestFailed",
	KindFolderSave: "ErrorFolderSave",
	KindFolderSaveFailed: "ErrorFolderSaveFailed",
	KindFolderSavePropertyError: "ErrorFolderSavePropertyError",
	KindFreeBusyGenerationFailed: "ErrorFreeBusyGenerationFailed",
	KindImpersonateUserDenied: "ErrorImpersonateUserDenied",
	KindImpersonationDenied: "ErrorImpersonationDenied",
	KindImpersonationFailed: "ErrorImpersonationFailed",
	KindIncorrectSchemaVersion: "ErrorIncorrectSchemaVersion",
	KindIncorrectUpdatePropertyCount: "ErrorIncorrectUpdatePropertyCount",
	KindIndividualMailboxLimitReached: "ErrorIndividualMailboxLimitReached",
	KindInsufficientResources: "ErrorInsufficientResources",
	KindInternalServerError: "ErrorInternalServerError",
	KindInternalServerTransientError: "ErrorInternalServerTransientError",
	KindInvalidAccessLevel: "ErrorInvalidAccessLevel",
	KindInvalidAttachmentId: "ErrorInvalidAttachmentId",
	KindInvalidAttachmentSubfilter: "ErrorInvalidAttachmentSubfilter",
	KindInvalidAttachmentSubfilterTextFilter: "ErrorInvalidAttachmentSubfilterTextFilter",
	KindInvalidAuthorizationContext: "ErrorInvalidAuthorizationContext",
	KindInvalidChangeKey: "ErrorInvalidChangeKey",
	KindInvalidClientSecurityContext: "ErrorInvalidClientSecurityContext",
	KindInvalidCompleteDate: "ErrorInvalidCompleteDate",
	KindInvalidCrossForestCredentials: "ErrorInvalidCrossForestCredentials",
	KindInvalidDelegatePermission: "ErrorInvalidDelegatePermission",
	KindInvalidDelegateUserId: "ErrorInvalidDelegateUserId",
	KindInvalidExchangeImpersonationHeaderData: "ErrorInvalidExchangeImpersonationHeaderData",
	KindInvalidExcludesRestriction: "ErrorInvalidExcludesRestriction",
	KindInvalidExtendedProperty: "ErrorInvalidExtendedProperty",
	KindInvalidExtendedPropertyValue: "ErrorInvalidExtendedPropertyValue",
	KindInvalidFolderId: "ErrorInvalidFolderId",
	KindInvalidFolderTypeForOperation: "ErrorInvalidFolderTypeForOperation",
	KindInvalidFractionalPagingParameters: "ErrorInvalidFractionalPagingParameters",
	KindInvalidFreeBusyViewType: "ErrorInvalidFreeBusyViewType",
	KindInvalidId: "ErrorInvalidId",
	KindInvalidIdEmpty: "ErrorInvalidIdEmpty",
	KindInvalidIdMalformed: "ErrorInvalidIdMalformed",
	KindInvalidIdMalformedEwsLegacyIdFormat: "ErrorInvalidIdMalformedEwsLegacyIdFormat",
	KindInvalidIdMonikerTooLong: "ErrorInvalidIdMonikerTooLong",
	KindInvalidIdNotAnItemAttachmentId: "ErrorInvalidIdNotAnItemAttachmentId",
	KindInvalidIdReturnedByResolveNames: "ErrorInvalidIdReturnedByResolveNames",
	KindInvalidIdStoreObjectIdTooLong: "ErrorInvalidIdStoreObjectIdTooLong",
	KindInvalidIdTooManyAttachmentLevels: "ErrorInvalidIdTooManyAttachmentLevels",
	KindInvalidIndexedPagingParameters: "ErrorInvalidIndexedPagingParameters",
	KindInvalidItemForOperationAcceptItem: "ErrorInvalidItemForOperationAcceptItem",
	KindInvalidItemForOperationCancelItem: "ErrorInvalidItemForOperationCancelItem",
	KindInvalidItemForOperationCreateItemAttachment: "ErrorInvalidItemForOperationCreateItemAttachment",
	KindInvalidItemForOperationCreateItem: "ErrorInvalidItemForOperationCreateItem",
	KindInvalidItemForOperationDeclineItem: "ErrorInvalidItemForOperationDeclineItem",
	KindInvalidItemForOperationExpandDL: "ErrorInvalidItemForOperationExpandDL",
	KindInvalidItemForOperationRemoveItem: "ErrorInvalidItemForOperationRemoveItem",
	KindInvalidItemForOperationSendItem: "ErrorInvalidItemForOperationSendItem",
	KindInvalidItemForOperationTentative: "ErrorInvalidItemForOperationTentative",
	KindInvalidManagedFolderProperty: "ErrorInvalidManagedFolderProperty",
	KindInvalidManagedFolderQuota: "ErrorInvalidManagedFolderQuota",
	KindInvalidManagedFolderSize: "ErrorInvalidManagedFolderSize",
	KindInvalidMergedFreeBusyInterval: "ErrorInvalidMergedFreeBusyInterval",
	KindInvalidNameForNameResolution: "ErrorInvalidNameForNameResolution",
	KindInvalidNetworkServiceContext: "ErrorInvalidNetworkServiceContext",
	KindInvalidOperation: "ErrorInvalidOperation",
	KindInvalidPagingMaxRows: "ErrorInvalidPagingMaxRows",
	KindInvalidParentFolder: "ErrorInvalidParentFolder",
	KindInvalidPercentCompleteValue: "ErrorInvalidPercentCompleteValue",
	KindInvalidPermissionSettings: "ErrorInvalidPermissionSettings",
	KindInvalidPropertyAppend: "ErrorInvalidPropertyAppend",
	KindInvalidPropertyDelete: "ErrorInvalidPropertyDelete",
	KindInvalidPropertyForExists: "ErrorInvalidPropertyForExists",
	KindInvalidPropertyForOperation: "ErrorInvalidPropertyForOperation",
	KindInvalidPropertyRequest: "ErrorInvalidPropertyRequest",
	KindInvalidPropertySet: "ErrorInvalidPropertySet",
	KindInvalidPropertyUpdateSentMessage: "ErrorInvalidPropertyUpdateSentMessage",
	KindInvalidPullSubscriptionId: "ErrorInvalidPullSubscriptionId",
	KindInvalidPushSubscriptionUrl: "ErrorInvalidPushSubscriptionUrl",
	KindInvalidRecipients: "ErrorInvalidRecipients",
	KindInvalidRecipientSubfilter: "ErrorInvalidRecipientSubfilter",
	KindInvalidRecipientSubfilterComparison: "ErrorInvalidRecipientSubfilterComparison",
	KindInvalidRecipientSubfilterOrder: "ErrorInvalidRecipientSubfilterOrder",
	KindInvalidRecipientSubfilterTextFilter: "ErrorInvalidRecipientSubfilterTextFilter",
	KindInvalidReferenceItem: "ErrorInvalidReferenceItem",
	KindInvalidRequest: "ErrorInvalidRequest",
	KindInvalidRoutingType: "ErrorInvalidRoutingType",
	KindInvalidScheduledOofDuration: "ErrorInvalidScheduledOofDuration",
	KindInvalidSecurityDescriptor: "ErrorInvalidSecurityDescriptor",
	KindInvalidSendItemSaveSettings: "ErrorInvalidSendItemSaveSettings",
	KindInvalidSerializedAccessToken: "ErrorInvalidSerializedAccessToken",
	KindInvalidSid: "ErrorInvalidSid",
	KindInvalidServerVersion: "ErrorInvalidServerVersion",
	KindInvalidSmtpAddress: "ErrorInvalidSmtpAddress",
	KindInvalidSubscription: "ErrorInvalidSubscription",
	KindInvalidSubscriptionRequest: "ErrorInvalidSubscriptionRequest",
	KindInvalidSyncStateData: "ErrorInvalidSyncStateData",
	KindInvalidTimeInterval: "ErrorInvalidTimeInterval",
	KindInvalidUserInfo: "ErrorInvalidUserInfo",
	KindInvalidUserOofSettings: "ErrorInvalidUserOofSettings",
	KindInvalidUserPrincipalName: "ErrorInvalidUserPrincipalName",
	KindInvalidUserSid: "ErrorInvalidUserSid",
	KindInvalidValueForProperty: "ErrorInvalidValueForProperty",
	KindInvalidWatermark: "ErrorInvalidWatermark",
	KindIrresolvableConflict: "ErrorIrresolvableConflict",
	KindItemCorrupt: "ErrorItemCorrupt",
	KindItemNotFound: "ErrorItemNotFound",
	KindItemPropertyRequestFailed: "ErrorItemPropertyRequestFailed",
	KindItemSave: "ErrorItemSave",
	KindItemSavePropertyError: "ErrorItemSavePropertyError",
	KindLogonAsNetworkServiceFailed: "ErrorLogonAsNetworkServiceFailed",
	KindMailboxConfiguration: "ErrorMailboxConfiguration",
	KindMailboxDataArrayEmpty: "ErrorMailboxDataArrayEmpty",
	KindMailboxDataArrayTooBig: "ErrorMailboxDataArrayTooBig",
	KindMailboxLogonFailed: "ErrorMailboxLogonFailed",
	KindMailboxMoveInProgress: "ErrorMailboxMoveInProgress",
	KindMailboxStoreUnavailable: "ErrorMailboxStoreUnavailable",
	KindMailRecipientNotFound: "ErrorMailRecipientNotFound",
	KindManagedFolderAlreadyExists: "ErrorManagedFolderAlreadyExists",
	KindManagedFolderNotFound: "ErrorManagedFolderNotFound",
	KindManagedFoldersRootFailure: "ErrorManagedFoldersRootFailure",
	KindMeetingSuggestionGenerationFailed: "ErrorMeetingSuggestionGenerationFailed",
	KindMessageDispositionRequired: "ErrorMessageDispositionRequired",
	KindMessageSizeExceeded: "ErrorMessageSizeExceeded",
	KindMimeContentConversionFailed: "ErrorMimeContentConversionFailed",
	KindMimeContentInvalid: "ErrorMimeContentInvalid",
	KindMimeContentInvalidBase64String: "ErrorMimeContentInvalidBase64String",
	KindMissingArgument: "ErrorMissingArgument",
	KindMissingEmailAddress: "ErrorMissingEmailAddress",
	KindMissingEmailAddressForManagedFolder: "ErrorMissingEmailAddressForManagedFolder",
	KindMissingInformationEmailAddress: "ErrorMissingInformationEmailAddress",
	KindMissingInformationReferenceItemId: "ErrorMissingInformationReferenceItemId",
	KindMissingItemForCreateItemAttachment: "ErrorMissingItemForCreateItemAttachment",
	KindMissingManagedFolderId: "ErrorMissingManagedFolderId",
	KindMissingRecipients: "ErrorMissingRecipients",
	KindMissingUserIdInformation: "ErrorMissingUserIdInformation",
	KindMoreThanOneAccessModeSpecified: "ErrorMoreThanOneAccessModeSpecified",
	KindMoveCopyFailed: "ErrorMoveCopyFailed",
	KindMoveDistinguishedFolder: "ErrorMoveDistinguishedFolder",
	KindNameResolutionMultipleResults: "ErrorNameResolutionMultipleResults",
	KindNameResolutionNoMailbox: "ErrorNameResolutionNoMailbox",
	KindNameResolutionNoResults: "ErrorNameResolutionNoResults",
	KindNoCalendar: "ErrorNoCalendar",
	KindNoDestinationCASDueToKerberosRequirements: "ErrorNoDestinationCASDueToKerberosRequirements",
	KindNoDestinationCASDueToSSLRequirements: "ErrorNoDestinationCASDueToSSLRequirements",
	KindNoDestinationCASDueToVersionMismatch: "ErrorNoDestinationCASDueToVersionMismatch",
	KindNoFolderClassOverride: "ErrorNoFolderClassOverride",
	KindNoFreeBusyAccess: "ErrorNoFreeBusyAccess",
	KindNonExistentMailbox: "ErrorNonExistentMailbox",
	KindNonPrimarySmtpAddress: "ErrorNonPrimarySmtpAddress",
	KindNoPropertyTagForCustomProperties: "ErrorNoPropertyTagForCustomProperties",
	KindNoRespondingCASInDestinationSite: "ErrorNoRespondingCASInDestinationSite",
	KindNotDelegate: "ErrorNotDelegate",
	KindNotEnoughMemory: "ErrorNotEnoughMemory",
	KindObjectTypeChanged: "ErrorObjectTypeChanged",
	KindOccurrenceCrossingBoundary: "ErrorOccurrenceCrossingBoundary",
	KindOccurrenceTimeSpanTooBig: "ErrorOccurrenceTimeSpanTooBig",
	KindOperationNotAllowedWithPublicFolderRoot: "ErrorOperationNotAllowedWithPublicFolderRoot",
	KindParentFolderNotFound: "ErrorParentFolderNotFound",
	KindPasswordChangeRequired: "ErrorPasswordChangeRequired",
	KindPasswordExpired: "ErrorPasswordExpired",
	KindPropertyUpdate: "ErrorPropertyUpdate",
	KindProxiedSubscriptionCallFailure: "ErrorProxiedSubscriptionCallFailure",
	KindProxyGroupSidLimitExceeded: "ErrorProxyGroupSidLimitExceeded",
	KindProxyRequestNotAllowed: "ErrorProxyRequestNotAllowed",
	KindProxyRequestProcessingFailed: "ErrorProxyRequestProcessingFailed",
	KindPublicFolderRequestProcessingFailed: "ErrorPublicFolderRequestProcessingFailed",
	KindPublicFolderServerNotFound: "ErrorPublicFolderServerNotFound",
	KindQueryFilterTooLong: "ErrorQueryFilterTooLong",
	KindQuotaExceeded: "ErrorQuotaExceeded",
	KindReadEventsFailed: "ErrorReadEventsFailed",
	KindReadReceiptNotPending: "ErrorReadReceiptNotPending",
	KindRecurrenceEndDateTooBig: "ErrorRecurrenceEndDateTooBig",
	KindRecurrenceHasNoOccurrence: "ErrorRecurrenceHasNoOccurrence",
	KindRemoveDelegatesFailed: "ErrorRemoveDelegatesFailed",
	KindRequestStreamTooBig: "ErrorRequestStreamTooBig",
	KindRequiredPropertyMissing: "ErrorRequiredPropertyMissing",
	KindResolveNamesInvalidFolderType: "ErrorResolveNamesInvalidFolderType",
	KindResolveNamesOnlyOneContactsFolderAllowed: "ErrorResolveNamesOnlyOneContactsFolderAllowed",
	KindResponseSchemaValidation: "ErrorResponseSchemaValidation",
	KindRestrictionTooLong: "ErrorRestrictionTooLong",
	KindRestrictionTooComplex: "ErrorRestrictionTooComplex",
	KindResultSetTooBig: "ErrorResultSetTooBig",
	KindSavedItemFolderNotFound: "ErrorSavedItemFolderNotFound",
	KindSchemaValidation: "ErrorSchemaValidation",
	KindSearchFolderNotInitialized: "ErrorSearchFolderNotInitialized",
	KindSendAsDenied: "ErrorSendAsDenied",
	KindSendMeetingCancellationsRequired: "ErrorSendMeetingCancellationsRequired",
	KindSendMeetingInvitationsOrCancellationsRequired: "ErrorSendMeetingInvitationsOrCancellationsRequired",
	KindSendMeetingInvitationsRequired: "ErrorSendMeetingInvitationsRequired",
	KindSentMeetingRequestUpdate: "ErrorSentMeetingRequestUpdate",
	KindSentTaskRequestUpdate: "ErrorSentTaskRequestUpdate",
	KindServerBusy: "ErrorServerBusy",
	KindServiceDiscoveryFailed: "ErrorServiceDiscoveryFailed",
	KindStaleObject: "ErrorStaleObject",
	KindSubscriptionAccessDenied: "ErrorSubscriptionAccessDenied",
	KindSubscriptionDelegateAccessNotSupported: "ErrorSubscriptionDelegateAccessNotSupported",
	KindSubscriptionNotFound: "ErrorSubscriptionNotFound",
	KindSyncFolderNotFound: "ErrorSyncFolderNotFound",
	KindTimeIntervalTooBig: "ErrorTimeIntervalTooBig",
	KindTimeoutExpired: "ErrorTimeoutExpired",
	KindTimeZone: "ErrorTimeZone",
	KindToFolderNotFound: "ErrorToFolderNotFound",
	KindTokenSerializationDenied: "ErrorTokenSerializationDenied",
	KindUnsupportedCulture: "ErrorUnsupportedCulture",
	KindUnsupportedMapiPropertyType: "ErrorUnsupportedMapiPropertyType",
	KindUnsupportedMimeConversion: "ErrorUnsupportedMimeConversion",
	KindUnsupportedPathForQuery: "ErrorUnsupportedPathForQuery",
	KindUnsupportedPathForSortGroup: "ErrorUnsupportedPathForSortGroup",
	KindUnsupportedQueryFilter: "ErrorUnsupportedQueryFilter",
	KindUnsupportedRecurrence: "ErrorUnsupportedRecurrence",
	KindUnsupportedTypeForConversion: "ErrorUnsupportedTypeForConversion",
	KindUpdateDelegatesFailed: "ErrorUpdateDelegatesFailed",
	KindUpdatePropertyMismatch: "ErrorUpdatePropertyMismatch",
	KindVirusDetected: "ErrorVirusDetected",
	KindVirusMessageDeleted: "ErrorVirusMessageDeleted",
	KindWin32InteropError: "ErrorWin32InteropError",
}

var localKindNames = map[ErrorKind]string{
	KindNone:                 "NoError",
	KindNoResponse:           "NoResponse",
	KindCancelled:            "Cancelled",
	KindUnknown:              "Unknown",
	KindAuthenticationFailed: "AuthenticationFailed",
}

// String returns the EWS ResponseCode for server kinds and a descriptive name
// for locally synthesized ones.
func (k ErrorKind) String() string {
	if name, ok := localKindNames[k]; ok {
		return name
	}
	if k > KindNone && int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return "Unknown"
}

// ResponseCode returns the EWS ResponseCode string for server kinds, or "".
func (k ErrorKind) ResponseCode() string {
	if k > KindNone && int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return ""
}

type codeEntry struct {
	code string
	kind ErrorKind
}

var (
	codeTable     []codeEntry
	codeTableOnce sync.Once
)

func sortedCodes() []codeEntry {
	codeTableOnce.Do(func() {
		table := make([]codeEntry, 0, len(kindCodes))
		for k, code := range kindCodes {
			if code == "" {
				continue
			}
			table = append(table, codeEntry{code: code, kind: ErrorKind(k)})
		}
		slices.SortFunc(table, func(a, b codeEntry) int {
			return strings.Compare(a.code, b.code)
		})
		codeTable = table
	})
	return codeTable
}

// Classify maps an EWS ResponseCode to its ErrorKind. Matching is exact and
// case-sensitive; unrecognized codes, including "", map to KindUnknown.
func Classify(code string) ErrorKind {
	table := sortedCodes()
	i := sort.Search(len(table), func(i int) bool {
		return table[i].code >= code
	})
	if i < len(table) && table[i].code == code {
		return table[i].kind
	}
	return KindUnknown
}
